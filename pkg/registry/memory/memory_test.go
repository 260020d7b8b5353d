package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/registry"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	defer reg.Close()

	w, err := reg.Watch(ctx, "run")
	require.NoError(t, err)
	defer w.Stop()

	inst := registry.NewRoleInstance("run", transport.RoleServer, endpoint.IPv4Endpoint())
	require.Equal(t, "run/server", inst.ID)
	require.Equal(t, "ipv4", inst.Family)
	require.Equal(t, "127.0.0.1:5432", inst.Endpoint)

	require.NoError(t, reg.Register(ctx, inst))
	require.ErrorIs(t, reg.Register(ctx, inst), registry.ErrAlreadyExists)

	inst.State = registry.StateBound
	require.NoError(t, reg.Update(ctx, inst))

	// Stored values are copies.
	inst.State = registry.StateFailed
	got, err := reg.Get(ctx, "run", "server")
	require.NoError(t, err)
	require.Equal(t, registry.StateBound, got.State)

	ev, err := w.Next()
	require.NoError(t, err)
	require.Equal(t, registry.EventAdd, ev.Type)
	require.Equal(t, registry.StateInit, ev.Instance.State)

	ev, err = w.Next()
	require.NoError(t, err)
	require.Equal(t, registry.EventUpdate, ev.Type)
	require.Equal(t, registry.StateBound, ev.Instance.State)

	require.NoError(t, reg.Deregister(ctx, "run", "server"))
	ev, err = w.Next()
	require.NoError(t, err)
	require.Equal(t, registry.EventDelete, ev.Type)

	require.ErrorIs(t, reg.Deregister(ctx, "run", "server"), registry.ErrNotFound)
	require.ErrorIs(t, reg.Update(ctx, inst), registry.ErrNotFound)
}

func TestWatchIsPerRun(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	w, err := reg.Watch(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, reg.Register(ctx, registry.NewRoleInstance("b", transport.RoleClient, endpoint.IPv4Endpoint())))
	require.NoError(t, reg.Register(ctx, registry.NewRoleInstance("a", transport.RoleClient, endpoint.IPv4Endpoint())))

	ev, err := w.Next()
	require.NoError(t, err)
	require.Equal(t, "a", ev.Instance.RunID)

	list, err := reg.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, reg.Close())
	_, err = w.Next()
	require.ErrorIs(t, err, registry.ErrWatcherStopped)
	require.ErrorIs(t, reg.Register(ctx, list[0]), registry.ErrNotConnected)
}

func TestWatcherStop(t *testing.T) {
	reg := NewRegistry()
	w, err := reg.Watch(context.Background(), "run")
	require.NoError(t, err)

	w.Stop()
	w.Stop()
	_, err = w.Next()
	require.ErrorIs(t, err, registry.ErrWatcherStopped)
}
