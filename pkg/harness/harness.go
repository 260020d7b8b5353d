// Kunhua Huang 2026

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ecstasoy/sockharness/pkg/delay"
	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/extension"
	"github.com/ecstasoy/sockharness/pkg/interceptor"
	"github.com/ecstasoy/sockharness/pkg/registry"
	"github.com/ecstasoy/sockharness/pkg/transport"
	"github.com/ecstasoy/sockharness/pkg/transport/tcp"
)

const (
	ExitOK = iota
	// ExitConnect: the client found nobody listening.
	ExitConnect
	// ExitError covers every other failure.
	ExitError
)

// Harness runs one role of a run with the ambient stack wired around it.
type Harness struct {
	Endpoint endpoint.Endpoint
	RunID    string
	Args     delay.Args

	Logger *zap.Logger
	// Registry records role states when non-nil.
	Registry registry.Registry
	// Cleanup deregisters the role once it is over.
	Cleanup bool
	// Extension receives step events when it holds a loaded module.
	Extension *extension.Dispatcher

	Sleeper delay.Sleeper
	Stdout  io.Writer
	Stderr  io.Writer

	listening func(endpoint.Endpoint)
}

func (h *Harness) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Harness) stdout() io.Writer {
	if h.Stdout == nil {
		return os.Stdout
	}
	return h.Stdout
}

func (h *Harness) stderr() io.Writer {
	if h.Stderr == nil {
		return os.Stderr
	}
	return h.Stderr
}

func (h *Harness) RunServer(ctx context.Context) (*transport.ServerResult, error) {
	inst := h.register(ctx, transport.RoleServer)
	defer h.deregister(ctx, inst)

	options := []transport.ServerOption{
		transport.WithServerDelay(h.Args.Plan, h.Sleeper),
		transport.WithServerOutput(h.stdout()),
		transport.WithServerInterceptors(h.interceptors(inst)...),
	}
	if h.listening != nil {
		options = append(options, transport.WithOnListen(h.listening))
	}

	return tcp.NewServer(h.Endpoint, options...).Run(ctx)
}

func (h *Harness) RunClient(ctx context.Context) (*transport.ClientResult, error) {
	inst := h.register(ctx, transport.RoleClient)
	defer h.deregister(ctx, inst)

	return tcp.NewClient(h.Endpoint,
		transport.WithClientDelay(h.Args.Plan, h.Sleeper),
		transport.WithClientOutput(h.stdout()),
		transport.WithPayload(h.Args.Payload()),
		transport.WithClientInterceptors(h.interceptors(inst)...),
	).Run(ctx)
}

// interceptors builds the step chain, outermost first. The extension sits
// closest to the socket call. A nil inst leaves recording out.
func (h *Harness) interceptors(inst *registry.RoleInstance) []transport.Interceptor {
	log := h.logger()

	chain := []transport.Interceptor{
		interceptor.Recovery(),
		interceptor.Logging(log.Sugar()),
		interceptor.Metrics(),
	}

	if inst != nil {
		chain = append(chain, interceptor.Record(h.Registry, inst, func(err error) {
			log.Warn("record role state", zap.Error(err))
		}))
	}

	if h.Extension != nil {
		chain = append(chain, interceptor.Extension(h.Extension, 0))
	}

	return chain
}

func (h *Harness) register(ctx context.Context, role transport.Role) *registry.RoleInstance {
	if h.Registry == nil {
		return nil
	}

	inst := registry.NewRoleInstance(h.RunID, role, h.Endpoint)
	if err := h.Registry.Register(ctx, inst); err != nil {
		h.logger().Warn("register role instance, recording disabled", zap.String("id", inst.ID), zap.Error(err))
		return nil
	}

	return inst
}

func (h *Harness) deregister(ctx context.Context, inst *registry.RoleInstance) {
	if inst == nil || !h.Cleanup {
		return
	}

	if err := h.Registry.Deregister(ctx, inst.RunID, inst.Role); err != nil {
		h.logger().Warn("deregister role instance", zap.String("id", inst.ID), zap.Error(err))
	}
}

// ExitCode maps the outcome of a role to the process exit status.
func ExitCode(err error) int {
	var cerr *tcp.ConnectError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cerr):
		return ExitConnect
	default:
		return ExitError
	}
}

// report prints a failed role the way a user of the harness expects: the
// connect error as the only stderr line, anything else through the logger.
// Step failures are traced below the default warn level.
func (h *Harness) report(err error) int {
	code := ExitCode(err)

	switch code {
	case ExitConnect:
		var errno unix.Errno
		if errors.As(err, &errno) {
			fmt.Fprintf(h.stderr(), "[Errno %d] %s\n", int(errno), errno.Error())
		} else {
			fmt.Fprintln(h.stderr(), err)
		}
	case ExitError:
		h.logger().Error("role failed", zap.Error(err))
	}

	return code
}
