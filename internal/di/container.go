// Package di provides a small named-value dependency-injection container.
// The orchestrator consumes only its Has/Get surface when resolving module
// constructor parameters; the app layer populates it with shared services.
package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotRegistered is returned by Get for unknown names.
var ErrNotRegistered = errors.New("dependency not registered")

// BuildFunc constructs a value on demand. It may block; callers pass a
// context to bound it.
type BuildFunc func(ctx context.Context) (any, error)

type provider interface {
	provide(ctx context.Context) (any, error)
}

// instanceProvider hands out a prebuilt value.
type instanceProvider struct {
	value any
}

func (p *instanceProvider) provide(context.Context) (any, error) {
	return p.value, nil
}

// singletonProvider builds its value once, on first resolution. A failed
// build is not cached, so the next Get retries.
type singletonProvider struct {
	mu    sync.Mutex
	build BuildFunc
	value any
	built bool
}

func (p *singletonProvider) provide(ctx context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.built {
		return p.value, nil
	}
	value, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	p.value = value
	p.built = true
	return value, nil
}

// factoryProvider builds a fresh value per resolution.
type factoryProvider struct {
	build BuildFunc
}

func (p *factoryProvider) provide(ctx context.Context) (any, error) {
	return p.build(ctx)
}

// Container maps names to providers. Safe for concurrent use.
type Container struct {
	mu        sync.RWMutex
	providers map[string]provider
}

// New returns an empty container.
func New() *Container {
	return &Container{providers: make(map[string]provider)}
}

// RegisterInstance binds a name to an existing value.
func (c *Container) RegisterInstance(name string, value any) {
	c.register(name, &instanceProvider{value: value})
}

// RegisterSingleton binds a name to a lazily built, shared value.
func (c *Container) RegisterSingleton(name string, build BuildFunc) {
	c.register(name, &singletonProvider{build: build})
}

// RegisterFactory binds a name to a per-resolution builder.
func (c *Container) RegisterFactory(name string, build BuildFunc) {
	c.register(name, &factoryProvider{build: build})
}

func (c *Container) register(name string, p provider) {
	c.mu.Lock()
	c.providers[name] = p
	c.mu.Unlock()
}

// Has reports whether a value is registered under name.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.providers[name]
	return ok
}

// Get resolves the value registered under name.
func (c *Container) Get(ctx context.Context, name string) (any, error) {
	c.mu.RLock()
	p, ok := c.providers[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	value, err := p.provide(ctx)
	if err != nil {
		return nil, fmt.Errorf("provide %q: %w", name, err)
	}
	return value, nil
}
