// Package container is the dependency container that generated
// registration lists populate.
//
// A generated list looks like:
//
//	func Register(c *container.Container) error {
//		container.Bind[repository.CustomerRepository, repository.SQLCustomerRepository](c, repository.NewSQLCustomerRepository)
//		return c.Err()
//	}
//
// Registration errors are collected instead of returned one by one so the
// list stays a flat sequence of statements.
package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/dig"
)

// Container wraps a dig container.
type Container struct {
	dig *dig.Container

	mu   sync.Mutex
	errs []error
}

// New returns an empty container.
func New() *Container {
	return &Container{dig: dig.New()}
}

// Err returns every error recorded by Bind, Provide and Supply.
func (c *Container) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.errs...)
}

func (c *Container) record(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

// Bind registers ctor as the provider of *T and exposes *T as I. ctor is a
// function whose first result is *T; its parameters are resolved from the
// container.
func Bind[I, T any](c *Container, ctor any) {
	iface := reflect.TypeFor[I]()
	impl := reflect.TypeFor[*T]()
	if iface.Kind() != reflect.Interface {
		c.record(fmt.Errorf("container: bind %s: not an interface", iface))
		return
	}
	if !impl.Implements(iface) {
		c.record(fmt.Errorf("container: bind %s: %s does not implement it", iface, impl))
		return
	}
	if err := c.dig.Provide(ctor); err != nil {
		c.record(fmt.Errorf("container: bind %s: %w", iface, err))
		return
	}
	if err := c.dig.Provide(func(v *T) I { return any(v).(I) }); err != nil {
		c.record(fmt.Errorf("container: bind %s: %w", iface, err))
	}
}

// Provide registers ctor as the provider of *T. It serves types that are
// used by their concrete type, such as the foreign-key services.
func Provide[T any](c *Container, ctor any) {
	if err := c.dig.Provide(ctor); err != nil {
		c.record(fmt.Errorf("container: provide %s: %w", reflect.TypeFor[*T](), err))
	}
}

// Supply registers a ready value of type T.
func Supply[T any](c *Container, v T) {
	if err := c.dig.Provide(func() T { return v }); err != nil {
		c.record(fmt.Errorf("container: supply %s: %w", reflect.TypeFor[T](), err))
	}
}

// Resolve builds the value registered for T.
func Resolve[T any](c *Container) (T, error) {
	var out T
	err := c.dig.Invoke(func(v T) { out = v })
	if err != nil {
		return out, fmt.Errorf("container: resolve %s: %w", reflect.TypeFor[T](), err)
	}
	return out, nil
}
