package gen

import (
	"errors"
	"time"

	"github.com/syssam/zgen"
)

// Option configures code generation.
type Option func(*Config) error

// WithModule sets the Go import path of the project.
// For example: "example.com/shop".
func WithModule(module string) Option {
	return func(c *Config) error {
		if module == "" {
			return zgen.NewConfigError("module", nil, "module cannot be empty")
		}
		c.Module = module
		return nil
	}
}

// WithRoot sets the project root directory.
func WithRoot(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return zgen.NewConfigError("root", nil, "root directory cannot be empty")
		}
		c.Root = dir
		return nil
	}
}

// WithSchemaRoot sets the directory holding one folder per schema.
func WithSchemaRoot(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return zgen.NewConfigError("schemaRoot", nil, "schema root cannot be empty")
		}
		c.SchemaRoot = dir
		return nil
	}
}

// WithOutput sets the root directory of generated Go packages.
func WithOutput(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return zgen.NewConfigError("output", nil, "output directory cannot be empty")
		}
		c.Output = dir
		return nil
	}
}

// WithPrefix sets the stored procedure name prefix.
func WithPrefix(prefix string) Option {
	return func(c *Config) error {
		if prefix == "" {
			return zgen.NewConfigError("prefix", nil, "prefix cannot be empty")
		}
		c.Prefix = prefix
		return nil
	}
}

// WithSchemas limits generation to the named schemas.
func WithSchemas(schemas ...string) Option {
	return func(c *Config) error {
		c.Schemas = append(c.Schemas, schemas...)
		return nil
	}
}

// WithDebounce sets the window that collapses bursts of file events.
func WithDebounce(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return zgen.NewConfigError("debounce", d, "debounce must be positive")
		}
		c.Debounce = d
		return nil
	}
}

// WithLockTimeout sets how long a synchronizer waits for a file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return zgen.NewConfigError("lockTimeout", d, "lock timeout must be positive")
		}
		c.LockTimeout = d
		return nil
	}
}

// WithWorkers bounds the parallelism of full regeneration.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return zgen.NewConfigError("workers", n, "workers must not be negative")
		}
		c.Workers = n
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a Config with defaults and the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := DefaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}
