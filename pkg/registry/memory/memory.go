// Kunhua Huang 2026
// In-memory role registry, used by tests and single-process runs

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecstasoy/sockharness/pkg/registry"
)

const watchBuffer = 32

type Registry struct {
	instances map[string]*registry.RoleInstance
	watchers  map[string][]*memoryWatcher
	closed    bool
	mu        sync.RWMutex
}

var _ registry.WatchableRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]*registry.RoleInstance),
		watchers:  make(map[string][]*memoryWatcher),
	}
}

func (r *Registry) Register(ctx context.Context, instance *registry.RoleInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return registry.ErrNotConnected
	}
	if _, exists := r.instances[instance.ID]; exists {
		return registry.ErrAlreadyExists
	}

	stored := instance.Clone()
	r.instances[stored.ID] = stored

	r.notify(stored.RunID, registry.EventAdd, stored)

	return nil
}

func (r *Registry) Update(ctx context.Context, instance *registry.RoleInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return registry.ErrNotConnected
	}
	if _, exists := r.instances[instance.ID]; !exists {
		return registry.ErrNotFound
	}

	stored := instance.Clone()
	stored.UpdateTime = time.Now()
	r.instances[stored.ID] = stored

	r.notify(stored.RunID, registry.EventUpdate, stored)

	return nil
}

func (r *Registry) Deregister(ctx context.Context, runID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := registry.Key(runID, role)
	instance, exists := r.instances[id]
	if !exists {
		return registry.ErrNotFound
	}

	delete(r.instances, id)

	r.notify(runID, registry.EventDelete, instance)

	return nil
}

// Get returns a copy of the stored instance.
func (r *Registry) Get(ctx context.Context, runID, role string) (*registry.RoleInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, exists := r.instances[registry.Key(runID, role)]
	if !exists {
		return nil, registry.ErrNotFound
	}

	return instance.Clone(), nil
}

// List returns copies of every instance of a run, ordered by ID.
func (r *Registry) List(ctx context.Context, runID string) ([]*registry.RoleInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*registry.RoleInstance
	for _, instance := range r.instances {
		if instance.RunID == runID {
			result = append(result, instance.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (r *Registry) Watch(ctx context.Context, runID string) (registry.Watcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, registry.ErrNotConnected
	}

	w := &memoryWatcher{
		ch:     make(chan *registry.Event, watchBuffer),
		stopCh: make(chan struct{}),
	}
	r.watchers[runID] = append(r.watchers[runID], w)

	return w, nil
}

// notify never blocks: a watcher that fell behind by more than its buffer
// loses events.
func (r *Registry) notify(runID string, typ registry.EventType, instance *registry.RoleInstance) {
	for _, w := range r.watchers[runID] {
		select {
		case w.ch <- &registry.Event{Type: typ, Instance: instance.Clone()}:
		default:
		}
	}
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, watchers := range r.watchers {
		for _, w := range watchers {
			close(w.ch)
		}
	}
	r.watchers = nil

	return nil
}

type memoryWatcher struct {
	ch     chan *registry.Event
	once   sync.Once
	stopCh chan struct{}
}

func (w *memoryWatcher) Next() (*registry.Event, error) {
	select {
	case <-w.stopCh:
		return nil, registry.ErrWatcherStopped
	case event, ok := <-w.ch:
		if !ok {
			return nil, registry.ErrWatcherStopped
		}
		return event, nil
	}
}

func (w *memoryWatcher) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}
