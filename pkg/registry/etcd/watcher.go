// Kunhua Huang 2026

package etcd

import (
	"context"
	"fmt"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/sockharness/pkg/codec"
	"github.com/ecstasoy/sockharness/pkg/registry"
)

type etcdWatcher struct {
	watchCh clientv3.WatchChan
	codec   codec.Codec
	pending []*registry.Event

	once   sync.Once
	stopCh chan struct{}
	cancel context.CancelFunc
}

func (ew *etcdWatcher) Next() (*registry.Event, error) {
	for {
		if len(ew.pending) > 0 {
			ev := ew.pending[0]
			ew.pending = ew.pending[1:]
			return ev, nil
		}

		select {
		case <-ew.stopCh:
			return nil, registry.ErrWatcherStopped
		case watchResp, ok := <-ew.watchCh:
			if !ok {
				return nil, registry.ErrWatcherStopped
			}
			if err := watchResp.Err(); err != nil {
				return nil, err
			}

			for _, ev := range watchResp.Events {
				event, err := ew.convert(ev)
				if err != nil {
					return nil, err
				}
				ew.pending = append(ew.pending, event)
			}
		}
	}
}

func (ew *etcdWatcher) convert(ev *clientv3.Event) (*registry.Event, error) {
	var instance registry.RoleInstance

	if ev.Type == clientv3.EventTypeDelete {
		if ev.PrevKv != nil {
			if err := ew.codec.Decode(ev.PrevKv.Value, &instance); err != nil {
				return nil, fmt.Errorf("decode %s: %w", ev.PrevKv.Key, err)
			}
		}
		return &registry.Event{Type: registry.EventDelete, Instance: &instance}, nil
	}

	if err := ew.codec.Decode(ev.Kv.Value, &instance); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.Kv.Key, err)
	}

	eventType := registry.EventUpdate
	if ev.IsCreate() {
		eventType = registry.EventAdd
	}

	return &registry.Event{Type: eventType, Instance: &instance}, nil
}

func (ew *etcdWatcher) Stop() {
	ew.once.Do(func() {
		ew.cancel()
		close(ew.stopCh)
	})
}
