// Kunhua Huang 2026

package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/sockharness/pkg/registry"
)

// EtcdRegistry stores each role instance under <prefix>/<run>/<role>. All
// keys of one process share a lease, so a role that dies without
// deregistering disappears after LeaseTTL.
type EtcdRegistry struct {
	*EtcdClient
	leaseID clientv3.LeaseID

	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	stopCh      chan struct{}
	cancel      context.CancelFunc
}

var _ registry.WatchableRegistry = (*EtcdRegistry)(nil)

func NewEtcdRegistry(config *Config) (*EtcdRegistry, error) {
	client, err := NewEtcdClient(config)
	if err != nil {
		return nil, err
	}

	er := &EtcdRegistry{
		EtcdClient: client,
		stopCh:     make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), client.config.DialTimeout)
	defer cancel()

	if err := er.createLease(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("create lease: %w", err)
	}

	return er, nil
}

func (er *EtcdRegistry) createLease(ctx context.Context) error {
	grant, err := er.client.Grant(ctx, er.config.LeaseTTL)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	er.leaseID = grant.ID

	kaCtx, cancel := context.WithCancel(context.Background())
	keepAliveCh, err := er.client.KeepAlive(kaCtx, er.leaseID)
	if err != nil {
		cancel()
		return fmt.Errorf("keep alive lease: %w", err)
	}

	er.keepAliveCh = keepAliveCh
	er.cancel = cancel

	go er.listenKeepAlive()

	return nil
}

func (er *EtcdRegistry) listenKeepAlive() {
	for {
		select {
		case <-er.stopCh:
			return
		case resp, ok := <-er.keepAliveCh:
			if !ok || resp == nil {
				return
			}
		}
	}
}

func (er *EtcdRegistry) Register(ctx context.Context, instance *registry.RoleInstance) error {
	// Only succeeds if the key does not exist yet.
	return er.put(ctx, instance, clientv3.Compare(clientv3.CreateRevision(er.key(instance)), "=", 0), registry.ErrAlreadyExists)
}

func (er *EtcdRegistry) Update(ctx context.Context, instance *registry.RoleInstance) error {
	stored := instance.Clone()
	stored.UpdateTime = time.Now()
	return er.put(ctx, stored, clientv3.Compare(clientv3.CreateRevision(er.key(instance)), ">", 0), registry.ErrNotFound)
}

func (er *EtcdRegistry) put(ctx context.Context, instance *registry.RoleInstance, cond clientv3.Cmp, condErr error) error {
	value, err := er.codec.Encode(instance)
	if err != nil {
		return fmt.Errorf("encode instance: %w", err)
	}

	resp, err := er.client.Txn(ctx).
		If(cond).
		Then(clientv3.OpPut(er.key(instance), string(value), clientv3.WithLease(er.leaseID))).
		Commit()
	if err != nil {
		return fmt.Errorf("put to etcd: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%s: %w", instance.ID, condErr)
	}

	return nil
}

func (er *EtcdRegistry) Deregister(ctx context.Context, runID, role string) error {
	resp, err := er.client.Delete(ctx, er.instanceKey(runID, role))
	if err != nil {
		return fmt.Errorf("delete role instance %s from etcd: %w", registry.Key(runID, role), err)
	}
	if resp.Deleted == 0 {
		return registry.ErrNotFound
	}

	return nil
}

// List returns every instance of a run.
func (er *EtcdRegistry) List(ctx context.Context, runID string) ([]*registry.RoleInstance, error) {
	resp, err := er.client.Get(ctx, er.runPrefix(runID), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("get instances: %w", err)
	}

	instances := make([]*registry.RoleInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance registry.RoleInstance
		if err := er.codec.Decode(kv.Value, &instance); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kv.Key, err)
		}
		instances = append(instances, &instance)
	}

	return instances, nil
}

func (er *EtcdRegistry) Watch(ctx context.Context, runID string) (registry.Watcher, error) {
	ctx, cancel := context.WithCancel(ctx)
	watchCh := er.client.Watch(ctx, er.runPrefix(runID), clientv3.WithPrefix(), clientv3.WithPrevKV())

	return &etcdWatcher{
		watchCh: watchCh,
		codec:   er.codec,
		stopCh:  make(chan struct{}),
		cancel:  cancel,
	}, nil
}

func (er *EtcdRegistry) key(instance *registry.RoleInstance) string {
	return er.instanceKey(instance.RunID, instance.Role)
}

func (er *EtcdRegistry) Close() error {
	close(er.stopCh)
	if er.cancel != nil {
		er.cancel()
	}

	if er.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), er.config.DialTimeout)
		_, _ = er.client.Revoke(ctx, er.leaseID)
		cancel()
	}

	return er.EtcdClient.Close()
}
