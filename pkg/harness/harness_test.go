package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"

	"github.com/ecstasoy/sockharness/pkg/config"
	"github.com/ecstasoy/sockharness/pkg/delay"
	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/logging"
	"github.com/ecstasoy/sockharness/pkg/registry"
	"github.com/ecstasoy/sockharness/pkg/registry/memory"
	"github.com/ecstasoy/sockharness/pkg/transport"
	"github.com/ecstasoy/sockharness/pkg/transport/tcp"
)

const (
	envHelper       = "SOCKHARNESS_TEST_HELPER"
	envHelperFamily = "SOCKHARNESS_TEST_FAMILY"
)

// TestHelperProcess is the client side of the split tests. It only runs
// inside a process started by Split.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(envHelper) != "1" {
		return
	}

	family := endpoint.IPv4
	if os.Getenv(envHelperFamily) == endpoint.IPv6.String() {
		family = endpoint.IPv6
	}
	os.Exit(Main(family, []string{"0", "0", "0", "helper"}))
}

func loopback() endpoint.Endpoint {
	return endpoint.New(netip.MustParseAddr("127.0.0.1"), 0)
}

func loopbackIPv6() endpoint.Endpoint {
	return endpoint.New(netip.IPv6Loopback(), 0)
}

func skipWithoutIPv6(t *testing.T) {
	t.Helper()

	sock, err := tcp.NewSocket(endpoint.IPv6)
	if err != nil {
		t.Skipf("no IPv6 sockets: %v", err)
	}
	defer sock.Close()

	if err := sock.Bind(loopbackIPv6()); err != nil {
		t.Skipf("::1 unavailable: %v", err)
	}
}

func helperLaunch(ep endpoint.Endpoint, stdout, stderr *bytes.Buffer) Launch {
	return Launch{
		Path: os.Args[0],
		Args: []string{"-test.run=^TestHelperProcess$"},
		Env: []string{
			envHelper + "=1",
			envHelperFamily + "=" + ep.Family.String(),
			config.EnvPath + "=",
		},
		Endpoint: ep,
		RunID:    "run-helper",
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

func TestRoleFromEnv(t *testing.T) {
	t.Setenv(EnvRole, "")
	role, err := RoleFromEnv()
	require.NoError(t, err)
	require.Equal(t, transport.RoleServer, role)

	t.Setenv(EnvRole, "client")
	role, err = RoleFromEnv()
	require.NoError(t, err)
	require.Equal(t, transport.RoleClient, role)

	t.Setenv(EnvRole, "proxy")
	_, err = RoleFromEnv()
	require.Error(t, err)
}

func TestInherited(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	_, _, err := inherited(endpoint.IPv4)
	require.ErrorIs(t, err, ErrNoEndpoint)

	t.Setenv(EnvEndpoint, "[::1]:6432")
	t.Setenv(EnvRunID, "abc")
	ep, runID, err := inherited(endpoint.IPv6)
	require.NoError(t, err)
	require.Equal(t, "abc", runID)
	require.Equal(t, 6432, ep.Port)
	require.Equal(t, endpoint.IPv6, ep.Family)

	_, _, err = inherited(endpoint.IPv4)
	require.ErrorIs(t, err, endpoint.ErrFamilyMismatch)
}

func TestSplitInChild(t *testing.T) {
	t.Setenv(EnvRole, "client")

	role, peer, err := Split(context.Background(), Launch{Path: "/nonexistent"})
	require.NoError(t, err)
	require.Equal(t, transport.RoleClient, role)
	require.Nil(t, peer)
}

func TestSplitStartFailure(t *testing.T) {
	t.Setenv(EnvRole, "")

	_, _, err := Split(context.Background(), Launch{Path: filepath.Join(t.TempDir(), "missing"), Endpoint: loopback()})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoEndpoint)
}

func TestSplitNeedsEndpoint(t *testing.T) {
	t.Setenv(EnvRole, "")

	_, peer, err := Split(context.Background(), Launch{Path: os.Args[0]})
	require.ErrorIs(t, err, ErrNoEndpoint)
	require.Nil(t, peer)
}

func TestSplitRunsClient(t *testing.T) {
	for _, tc := range []struct {
		name   string
		listen endpoint.Endpoint
	}{
		{"ipv4", loopback()},
		{"ipv6", loopbackIPv6()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.listen.Family == endpoint.IPv6 {
				skipWithoutIPv6(t)
			}
			t.Setenv(EnvRole, "")

			var out bytes.Buffer
			listening := make(chan endpoint.Endpoint, 1)
			h := &Harness{Endpoint: tc.listen, Stdout: &out, listening: func(ep endpoint.Endpoint) { listening <- ep }}

			type outcome struct {
				result *transport.ServerResult
				err    error
			}
			done := make(chan outcome, 1)
			go func() {
				result, err := h.RunServer(context.Background())
				done <- outcome{result, err}
			}()

			bound := <-listening

			var stdout, stderr bytes.Buffer
			role, peer, err := Split(context.Background(), helperLaunch(bound, &stdout, &stderr))
			require.NoError(t, err)
			require.Equal(t, transport.RoleServer, role)
			require.NotNil(t, peer)

			var got outcome
			select {
			case got = <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("server did not finish")
			}
			require.NoError(t, got.err)
			require.Equal(t, "test helper", string(got.result.Data))
			require.Equal(t, tc.listen.Family, got.result.Peer.Family)

			code, err := peer.Wait()
			require.NoError(t, err)
			require.Equal(t, ExitOK, code, stderr.String())

			if tc.listen.Family == endpoint.IPv6 {
				// The child connected to the address the launcher handed it.
				require.Contains(t, stdout.String(), bound.String()+"\nClient connect\n")
			} else {
				require.Contains(t, stdout.String(), "Client connect")
				require.NotContains(t, stdout.String(), bound.String())
			}
		})
	}
}

func TestSplitClientConnectRefused(t *testing.T) {
	t.Setenv(EnvRole, "")

	sock, err := tcp.NewSocket(endpoint.IPv4)
	require.NoError(t, err)
	defer sock.Close()
	require.NoError(t, sock.Bind(loopback()))
	bound, err := sock.LocalEndpoint()
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	_, peer, err := Split(context.Background(), helperLaunch(bound, &stdout, &stderr))
	require.NoError(t, err)

	code, err := peer.Wait()
	require.NoError(t, err)
	require.Equal(t, ExitConnect, code)
	require.Contains(t, stderr.String(), fmt.Sprintf("[Errno %d] connection refused", int(unix.ECONNREFUSED)))
}

func TestExitCode(t *testing.T) {
	require.Equal(t, ExitOK, ExitCode(nil))
	require.Equal(t, ExitConnect, ExitCode(fmt.Errorf("client: %w", &tcp.ConnectError{Err: unix.ECONNREFUSED})))
	require.Equal(t, ExitError, ExitCode(errors.New("bind: address already in use")))
	require.Equal(t, ExitError, ExitCode(delay.ErrInvalidDelay))
}

func TestReport(t *testing.T) {
	var stderr bytes.Buffer
	h := &Harness{Stderr: &stderr}

	require.Equal(t, ExitConnect, h.report(&tcp.ConnectError{Err: unix.ECONNREFUSED}))
	require.Equal(t, "[Errno 111] connection refused\n", stderr.String())

	stderr.Reset()
	require.Equal(t, ExitError, h.report(errors.New("boom")))
	require.Empty(t, stderr.String())
}

func TestConnectRefusedPrintsOneLine(t *testing.T) {
	sock, err := tcp.NewSocket(endpoint.IPv4)
	require.NoError(t, err)
	defer sock.Close()
	require.NoError(t, sock.Bind(loopback()))
	bound, err := sock.LocalEndpoint()
	require.NoError(t, err)

	// Same sink and level as a default run: the logger shares stderr.
	var stderr bytes.Buffer
	logger, err := logging.New(config.Default().Log)
	require.NoError(t, err)
	logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&stderr), c)
	}))

	h := &Harness{Endpoint: bound, Logger: logger, Stdout: &bytes.Buffer{}, Stderr: &stderr}
	_, err = h.RunClient(context.Background())
	require.Equal(t, ExitConnect, h.report(err))
	require.NoError(t, logger.Sync())

	require.Equal(t, fmt.Sprintf("[Errno %d] connection refused\n", int(unix.ECONNREFUSED)), stderr.String())
}

func TestRolesRecordStates(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()
	defer reg.Close()

	w, err := reg.Watch(ctx, "run-1")
	require.NoError(t, err)
	defer w.Stop()

	listening := make(chan endpoint.Endpoint, 1)
	server := &Harness{
		Endpoint:  loopback(),
		RunID:     "run-1",
		Registry:  reg,
		Stdout:    &bytes.Buffer{},
		listening: func(ep endpoint.Endpoint) { listening <- ep },
	}

	errc := make(chan error, 1)
	go func() {
		_, err := server.RunServer(ctx)
		errc <- err
	}()

	client := &Harness{
		Endpoint: <-listening,
		RunID:    "run-1",
		Registry: reg,
		Stdout:   &bytes.Buffer{},
	}
	_, err = client.RunClient(ctx)
	require.NoError(t, err)
	require.NoError(t, <-errc)

	states := map[string][]registry.State{}
	for len(states["run-1/server"]) < 7 || len(states["run-1/client"]) < 5 {
		ev, err := w.Next()
		require.NoError(t, err)
		states[ev.Instance.ID] = append(states[ev.Instance.ID], ev.Instance.State)
	}

	require.Equal(t, []registry.State{
		registry.StateInit, registry.StateCreated, registry.StateBound, registry.StateListening,
		registry.StateAccepted, registry.StateReceived, registry.StateClosed,
	}, states["run-1/server"])
	require.Equal(t, []registry.State{
		registry.StateInit, registry.StateCreated, registry.StateConnected, registry.StateSent, registry.StateClosed,
	}, states["run-1/client"])
}

func TestCleanupDeregisters(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()

	sock, err := tcp.NewSocket(endpoint.IPv4)
	require.NoError(t, err)
	defer sock.Close()
	require.NoError(t, sock.Bind(loopback()))
	bound, err := sock.LocalEndpoint()
	require.NoError(t, err)

	w, err := reg.Watch(ctx, "run-3")
	require.NoError(t, err)
	defer w.Stop()

	h := &Harness{Endpoint: bound, RunID: "run-3", Registry: reg, Cleanup: true, Stdout: &bytes.Buffer{}}
	_, err = h.RunClient(ctx)
	require.Equal(t, ExitConnect, ExitCode(err))

	_, err = reg.Get(ctx, "run-3", "client")
	require.ErrorIs(t, err, registry.ErrNotFound)

	var last *registry.Event
	for last == nil || last.Type != registry.EventDelete {
		last, err = w.Next()
		require.NoError(t, err)
	}
	require.Equal(t, registry.StateFailed, last.Instance.State)
}

func TestClientFailureRecorded(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()

	sock, err := tcp.NewSocket(endpoint.IPv4)
	require.NoError(t, err)
	defer sock.Close()
	require.NoError(t, sock.Bind(loopback()))
	bound, err := sock.LocalEndpoint()
	require.NoError(t, err)

	h := &Harness{Endpoint: bound, RunID: "run-2", Registry: reg, Stdout: &bytes.Buffer{}}
	_, err = h.RunClient(ctx)
	require.Equal(t, ExitConnect, ExitCode(err))

	inst, err := reg.Get(ctx, "run-2", "client")
	require.NoError(t, err)
	require.Equal(t, registry.StateFailed, inst.State)
	require.Contains(t, inst.Error, "connection refused")
}

func TestTextfile(t *testing.T) {
	require.Equal(t, "/tmp/run.server.prom", textfilePath("/tmp/run.prom", transport.RoleServer))
	require.Equal(t, "/tmp/run.client", textfilePath("/tmp/run", transport.RoleClient))

	base := filepath.Join(t.TempDir(), "harness.prom")
	require.NoError(t, writeTextfile(base, transport.RoleClient))

	_, err := os.Stat(filepath.Join(filepath.Dir(base), "harness.client.prom"))
	require.NoError(t, err)
}

func TestOpenRegistry(t *testing.T) {
	reg, err := openRegistry(config.RegistryConfig{Type: "none"})
	require.NoError(t, err)
	require.Nil(t, reg)

	reg, err = openRegistry(config.RegistryConfig{Type: "memory"})
	require.NoError(t, err)
	require.IsType(t, &memory.Registry{}, reg)

	_, err = openRegistry(config.RegistryConfig{Type: "zookeeper"})
	require.Error(t, err)
}

func TestInitExtension(t *testing.T) {
	require.Nil(t, initExtension(config.ExtensionConfig{}, nil))
}
