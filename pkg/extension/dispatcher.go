// Kunhua Huang 2026

package extension

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNoCallback  = errors.New("module exports no callback")
	ErrInvalidPath = errors.New("invalid module path")
	ErrRefused     = errors.New("refused by extension")
)

// Module is a loaded client module. Every event after loading is
// forwarded to Callback unchanged and its result returned to the host.
type Module interface {
	Callback(h Handle, ev Event, data1, data2 any) int
}

type CallbackFunc func(h Handle, ev Event, data1, data2 any) int

func (f CallbackFunc) Callback(h Handle, ev Event, data1, data2 any) int {
	return f(h, ev, data1, data2)
}

type Loader interface {
	Load(path string) (Module, error)
}

// Dispatcher holds at most one module. It goes from empty to loaded on the
// first Initialization event and never changes afterwards: a second
// Initialization is refused with a warning, the loaded module is kept.
type Dispatcher struct {
	loader Loader
	logger *zap.SugaredLogger

	mu     sync.Mutex
	module Module
}

func NewDispatcher(loader Loader, logger *zap.Logger) *Dispatcher {
	if loader == nil {
		loader = PluginLoader{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		loader: loader,
		logger: logger.Sugar(),
	}
}

var (
	defaultOnce       sync.Once
	defaultDispatcher *Dispatcher
)

// Default returns the process-wide dispatcher, backed by Go plugins.
func Default() *Dispatcher {
	defaultOnce.Do(func() {
		defaultDispatcher = NewDispatcher(PluginLoader{}, zap.L())
	})
	return defaultDispatcher
}

// Dispatch delivers one event. With no module loaded it returns 0. A module
// that fails to load makes the Initialization event return -1.
func (d *Dispatcher) Dispatch(h Handle, ev Event, data1, data2 any) int {
	if ev == Initialization {
		if res, done := d.initialize(data1); done {
			return res
		}
	}

	d.mu.Lock()
	module := d.module
	d.mu.Unlock()

	if module == nil {
		return 0
	}

	return module.Callback(h, ev, data1, data2)
}

func (d *Dispatcher) initialize(data any) (int, bool) {
	path, perr := decodePath(data)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.module != nil {
		d.logger.Warnf("already have a client, refusing to use %v", data)
		return 0, false
	}

	if perr != nil {
		d.logger.Errorf("load extension module: %v", perr)
		return -1, true
	}

	module, err := d.loader.Load(path)
	if err != nil {
		d.logger.Errorf("load extension module %s: %v", path, err)
		return -1, true
	}

	d.module = module
	d.logger.Infof("loaded extension module %s", path)

	return 0, false
}

func (d *Dispatcher) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.module != nil
}

func decodePath(data any) (string, error) {
	var path string

	switch v := data.(type) {
	case string:
		path = v
	case []byte:
		path = string(v)
	case fmt.Stringer:
		path = v.String()
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidPath, data)
	}

	if path == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	return path, nil
}
