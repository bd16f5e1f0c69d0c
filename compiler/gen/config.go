package gen

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/cache"
	"github.com/syssam/zgen/compiler/lock"
)

// Default configuration values.
const (
	DefaultConfigFile = "zgen.yaml"
	DefaultSchemaRoot = "database"
	DefaultOutput     = "internal"
	DefaultPrefix     = "zgen"
	DefaultDebounce   = 100 * time.Millisecond
)

// Source and script directory names inside a schema directory.
const (
	TablesDir     = "Tables"
	ProceduresDir = "Stored Procedures"
	TypesDir      = "User Defined Types"
)

// Config holds the generator settings. It is usually read from zgen.yaml
// and adjusted with Options.
type Config struct {
	// Module is the Go import path of the project.
	Module string `yaml:"module"`
	// Root is the project root. Relative paths resolve against it.
	Root string `yaml:"root"`
	// SchemaRoot holds one directory per schema with the Tables and
	// Stored Procedures folders.
	SchemaRoot string `yaml:"schemaRoot"`
	// Output is the root of the generated Go packages.
	Output string `yaml:"output"`
	// Prefix starts every stored procedure name.
	Prefix string `yaml:"prefix"`
	// Manifest lists generated scripts for the database project. Empty
	// means <schemaRoot>/<prefix>.manifest.yaml.
	Manifest string `yaml:"manifest"`
	Client   ClientConfig `yaml:"client"`
	// Schemas limits generation to the named schemas. Empty means every
	// directory under SchemaRoot.
	Schemas     []string      `yaml:"schemas,omitempty"`
	Debounce    time.Duration `yaml:"debounce"`
	LockTimeout time.Duration `yaml:"lockTimeout"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	// Workers bounds full regeneration fan-out. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// ClientConfig locates client data models and data-access modules.
type ClientConfig struct {
	Models string `yaml:"models"`
	Output string `yaml:"output"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	c := &Config{Root: "."}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.SchemaRoot == "" {
		c.SchemaRoot = DefaultSchemaRoot
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.Client.Models == "" {
		c.Client.Models = "web/src/models"
	}
	if c.Client.Output == "" {
		c.Client.Output = "web/src/data"
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = lock.DefaultTimeout
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = cache.DefaultTTL
	}
}

// LoadConfig reads a YAML configuration file and applies defaults. Root
// defaults to the directory holding the file.
func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, zgen.NewIOError("read config", file, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, zgen.NewConfigError("file", file, fmt.Sprintf("parse config: %v", err))
	}
	switch {
	case c.Root == "":
		c.Root = filepath.Dir(file)
	case !filepath.IsAbs(c.Root):
		c.Root = filepath.Join(filepath.Dir(file), c.Root)
	}
	c.defaults()
	return &c, nil
}

// Validate checks the configuration. A missing schema root is reported as
// well, since nothing can be generated without it.
func (c *Config) Validate() error {
	var errs []error
	if c.Module == "" {
		errs = append(errs, zgen.NewConfigError("module", c.Module, "module import path is required"))
	} else if strings.ContainsAny(c.Module, " \\") || strings.HasSuffix(c.Module, "/") {
		errs = append(errs, zgen.NewConfigError("module", c.Module, "not an import path"))
	}
	if c.Prefix == "" || strings.Contains(c.Prefix, "_") {
		errs = append(errs, zgen.NewConfigError("prefix", c.Prefix, "prefix must be non-empty and contain no underscore"))
	}
	if c.Workers < 0 {
		errs = append(errs, zgen.NewConfigError("workers", c.Workers, "must not be negative"))
	}
	if c.Debounce < 0 || c.LockTimeout < 0 || c.CacheTTL < 0 {
		errs = append(errs, zgen.NewConfigError("duration", nil, "durations must not be negative"))
	}
	if rel, err := filepath.Rel(c.Root, c.Path(c.Output)); err != nil || strings.HasPrefix(rel, "..") {
		errs = append(errs, zgen.NewConfigError("output", c.Output, "output must be inside root"))
	}
	for _, s := range c.Schemas {
		if s == "" || strings.ContainsAny(s, `/\`) {
			errs = append(errs, zgen.NewConfigError("schemas", s, "invalid schema name"))
		}
	}
	if fi, err := os.Stat(c.Path(c.SchemaRoot)); err != nil || !fi.IsDir() {
		errs = append(errs, zgen.NewConfigError("schemaRoot", c.SchemaRoot, "schema root not found"))
	}
	return errors.Join(errs...)
}

// Path resolves p against Root.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// ManifestPath returns the manifest file, by default
// <schemaRoot>/<prefix>.manifest.yaml.
func (c *Config) ManifestPath() string {
	if c.Manifest != "" {
		return c.Path(c.Manifest)
	}
	return c.Path(path.Join(c.SchemaRoot, c.Prefix+".manifest.yaml"))
}

// WorkerCount returns the fan-out bound for full regeneration.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// SchemaNames returns the configured schemas, or every directory under the
// schema root when none are configured.
func (c *Config) SchemaNames() ([]string, error) {
	if len(c.Schemas) > 0 {
		return slices.Clone(c.Schemas), nil
	}
	entries, err := os.ReadDir(c.Path(c.SchemaRoot))
	if err != nil {
		return nil, zgen.NewIOError("list schemas", c.Path(c.SchemaRoot), err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Package is a generated Go package.
type Package struct {
	Dir  string // file system directory
	Path string // import path
	Name string // package name
}

// File returns the path of a file inside the package.
func (p Package) File(name string) string { return filepath.Join(p.Dir, name) }

// Layout resolves the directories of one schema.
type Layout struct {
	Schema     string
	Tables     string
	Procedures string
	Types      string
	Model      Package
	Repository Package
	Service    Package
	Registry   Package
}

// Layout returns the directories and packages used for schema.
func (c *Config) Layout(schemaName string) Layout {
	src := filepath.Join(c.Path(c.SchemaRoot), schemaName)
	out := filepath.Join(c.Path(c.Output), schemaName)
	rel, err := filepath.Rel(c.Root, out)
	if err != nil {
		rel = filepath.Join(c.Output, schemaName)
	}
	base := path.Join(c.Module, filepath.ToSlash(rel))
	pkg := func(name string) Package {
		return Package{Dir: filepath.Join(out, name), Path: base + "/" + name, Name: name}
	}
	return Layout{
		Schema:     schemaName,
		Tables:     filepath.Join(src, TablesDir),
		Procedures: filepath.Join(src, ProceduresDir),
		Types:      filepath.Join(src, TypesDir),
		Model:      pkg("model"),
		Repository: pkg("repository"),
		Service:    pkg("service"),
		Registry:   pkg("registry"),
	}
}

// TablePath returns the script path of a table.
func (c *Config) TablePath(schemaName, table string) string {
	return filepath.Join(c.Layout(schemaName).Tables, table+".sql")
}

// SourceKind classifies a schema source file.
type SourceKind uint8

// Source kinds.
const (
	UnknownSource SourceKind = iota
	TableSource
	ProcedureSource
	ModelSource
)

// Classify tells which kind of source lives at p. Tables and procedures are
// recognized by their folder, models by their .ts extension under the
// client models directory.
func (c *Config) Classify(p string) SourceKind {
	ext := strings.ToLower(filepath.Ext(p))
	switch ext {
	case ".sql":
		switch filepath.Base(filepath.Dir(p)) {
		case TablesDir:
			return TableSource
		case ProceduresDir:
			return ProcedureSource
		}
	case ".ts":
		if strings.HasSuffix(p, ".d.ts") {
			return UnknownSource
		}
		if rel, err := filepath.Rel(c.Path(c.Client.Models), p); err == nil && !strings.HasPrefix(rel, "..") {
			return ModelSource
		}
	}
	return UnknownSource
}

// listSources returns the *.sql files of dir in name order. A missing
// directory yields no files.
func listSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, zgen.NewIOError("list", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
