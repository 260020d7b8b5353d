// Kunhua Huang 2026

package tcp

import (
	"context"
	"fmt"

	pool "github.com/libp2p/go-buffer-pool"

	"github.com/ecstasoy/sockharness/pkg/delay"
	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/interceptor"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

type Server struct {
	endpoint endpoint.Endpoint
	opts     *transport.ServerOptions
	chain    *interceptor.Chain
}

var _ transport.ServerRole = (*Server)(nil)

func NewServer(ep endpoint.Endpoint, options ...transport.ServerOption) *Server {
	opts := transport.DefaultServerOptions()

	for _, o := range options {
		o(opts)
	}

	return &Server{
		endpoint: ep,
		opts:     opts,
		chain:    interceptor.NewChain(opts.Interceptors...),
	}
}

// Run executes socket, bind, listen, accept and a single recv, in that
// order. Both the accepted connection and the listening socket are closed
// on every return path.
func (s *Server) Run(ctx context.Context) (result *transport.ServerResult, err error) {
	result = &transport.ServerResult{}

	var sock *Socket
	err = s.step(ctx, transport.StepSocket, func(*transport.Step) error {
		var err error
		sock, err = NewSocket(s.endpoint.Family)
		return err
	})
	if err != nil {
		return result, err
	}
	defer s.release(ctx, transport.StepClose, sock, &err)

	if err := s.pause(ctx, delay.BeforeBind); err != nil {
		return result, err
	}

	fmt.Fprintln(s.opts.Output, "Server bind")
	err = s.step(ctx, transport.StepBind, func(*transport.Step) error {
		return sock.Bind(s.endpoint)
	})
	if err != nil {
		return result, err
	}

	fmt.Fprintln(s.opts.Output, "Server listen")
	err = s.step(ctx, transport.StepListen, func(*transport.Step) error {
		return sock.Listen(transport.Backlog)
	})
	if err != nil {
		return result, err
	}

	if s.opts.OnListen != nil {
		bound, err := sock.LocalEndpoint()
		if err != nil {
			return result, fmt.Errorf("read bound address: %w", err)
		}
		s.opts.OnListen(bound)
	}

	fmt.Fprintln(s.opts.Output, "Server accept")
	var conn *Socket
	err = s.step(ctx, transport.StepAccept, func(step *transport.Step) error {
		var err error
		conn, result.Peer, err = sock.Accept()
		return err
	})
	if err != nil {
		return result, err
	}
	result.Accepted = true
	defer s.release(ctx, transport.StepCloseConn, conn, &err)

	return result, s.receive(ctx, conn, result)
}

// receive reads once. Whatever the peer sent beyond the first chunk is
// left unread.
func (s *Server) receive(ctx context.Context, conn *Socket, result *transport.ServerResult) error {
	buf := pool.Get(transport.RecvBufferSize)
	defer pool.Put(buf)

	var n int
	err := s.step(ctx, transport.StepRecv, func(step *transport.Step) error {
		var err error
		n, err = conn.Recv(buf)
		step.Bytes = n
		return err
	})
	if err != nil {
		return err
	}

	if n == 0 {
		result.EOF = true
		return nil
	}

	result.Data = append([]byte(nil), buf[:n]...)
	fmt.Fprintf(s.opts.Output, "Server data received : %s\n", result.Data)

	return nil
}

func (s *Server) pause(ctx context.Context, at delay.Step) error {
	d := s.opts.Delay.For(at)
	if d <= 0 {
		return nil
	}

	return s.step(ctx, transport.StepDelay, func(step *transport.Step) error {
		step.Delay = s.opts.Delay.Apply(s.opts.Sleeper, at)
		return nil
	})
}

func (s *Server) release(ctx context.Context, name transport.StepName, sock *Socket, errp *error) {
	cerr := s.step(ctx, name, func(*transport.Step) error {
		return sock.Close()
	})
	if cerr != nil && *errp == nil {
		*errp = cerr
	}
}

func (s *Server) step(ctx context.Context, name transport.StepName, fn func(step *transport.Step) error) error {
	step := &transport.Step{
		Role:     transport.RoleServer,
		Name:     name,
		Endpoint: s.endpoint,
	}

	return s.chain.Intercept(ctx, step, func(ctx context.Context, step *transport.Step) error {
		return fn(step)
	})
}
