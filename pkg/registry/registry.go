// Kunhua Huang 2026

package registry

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("role instance not found")
	ErrAlreadyExists  = errors.New("role instance already exists")
	ErrNotConnected   = errors.New("not connected to registry")
	ErrWatcherStopped = errors.New("watcher has been stopped")
)

type Registry interface {
	Register(ctx context.Context, instance *RoleInstance) error
	Update(ctx context.Context, instance *RoleInstance) error
	Deregister(ctx context.Context, runID, role string) error
	Close() error
}

// Watchable registries report the transitions of every role in a run.
type Watchable interface {
	Watch(ctx context.Context, runID string) (Watcher, error)
}

type WatchableRegistry interface {
	Registry
	Watchable
}
