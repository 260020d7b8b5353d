// Kunhua Huang 2026

package extension

import (
	"fmt"
	"plugin"
)

// PluginLoader loads a module from a Go plugin. The plugin exports either
// a variable named Module implementing Module, or a function named
// Callback with the Module.Callback signature.
type PluginLoader struct{}

var _ Loader = PluginLoader{}

func (PluginLoader) Load(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin: %w", err)
	}

	if sym, err := p.Lookup("Module"); err == nil {
		switch m := sym.(type) {
		case *Module:
			if *m != nil {
				return *m, nil
			}
		case Module:
			return m, nil
		}
	}

	sym, err := p.Lookup("Callback")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCallback)
	}

	switch fn := sym.(type) {
	case func(Handle, Event, any, any) int:
		return CallbackFunc(fn), nil
	case *CallbackFunc:
		return *fn, nil
	default:
		return nil, fmt.Errorf("%s: Callback has type %T: %w", path, sym, ErrNoCallback)
	}
}
