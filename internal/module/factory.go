package module

import (
	"context"
	"fmt"
)

// Param declares one constructor parameter for a factory. At start time the
// resolver asks the DI container for a value under Name; if the container
// has none and Default is non-nil, the default is used; a required parameter
// with neither fails the start.
type Param struct {
	Name     string
	Default  any
	Required bool
}

// Factory describes how to construct a module: the declared constructor
// parameters plus the constructor itself. This replaces the original
// dynamic class-path loading with an explicit compile-time registry.
type Factory struct {
	// New builds the module from the resolved parameter values, keyed by
	// Param.Name.
	New func(values map[string]any) (Module, error)
	// Params lists the construction requirements, resolved in order.
	Params []Param
}

// resolveParams gathers constructor parameter values from the container and
// declared defaults.
func (f *Factory) resolveParams(ctx context.Context, container Container) (map[string]any, error) {
	values := make(map[string]any, len(f.Params))
	for _, p := range f.Params {
		if container != nil && container.Has(p.Name) {
			v, err := container.Get(ctx, p.Name)
			if err != nil {
				return nil, fmt.Errorf("resolve parameter %q: %w", p.Name, err)
			}
			values[p.Name] = v
			continue
		}
		if p.Default != nil {
			values[p.Name] = p.Default
			continue
		}
		if p.Required {
			return nil, fmt.Errorf("no value or default for required parameter %q", p.Name)
		}
	}
	return values, nil
}

// construct resolves parameters and invokes the constructor.
func (f *Factory) construct(ctx context.Context, container Container) (Module, error) {
	values, err := f.resolveParams(ctx, container)
	if err != nil {
		return nil, err
	}
	m, err := f.New(values)
	if err != nil {
		return nil, fmt.Errorf("construct module: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("factory returned nil module")
	}
	return m, nil
}
