//Kunhua Huang 2026

package tcp

import (
	"context"
	"fmt"

	"github.com/ecstasoy/sockharness/pkg/delay"
	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/interceptor"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

// ConnectError is the one failure the harness reports deliberately: the
// server was not listening (yet) when the client tried to connect.
type ConnectError struct {
	Endpoint endpoint.Endpoint
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

type Client struct {
	endpoint endpoint.Endpoint
	opts     *transport.ClientOptions
	chain    *interceptor.Chain
}

var _ transport.ClientRole = (*Client)(nil)

func NewClient(ep endpoint.Endpoint, options ...transport.ClientOption) *Client {
	opts := transport.DefaultClientOptions()

	for _, o := range options {
		o(opts)
	}

	return &Client{
		endpoint: ep,
		opts:     opts,
		chain:    interceptor.NewChain(opts.Interceptors...),
	}
}

// Run executes socket, connect and a single send. The socket is closed on
// every return path.
func (c *Client) Run(ctx context.Context) (result *transport.ClientResult, err error) {
	result = &transport.ClientResult{}

	var sock *Socket
	err = c.step(ctx, transport.StepSocket, func(*transport.Step) error {
		var err error
		sock, err = NewSocket(c.endpoint.Family)
		return err
	})
	if err != nil {
		return result, err
	}
	defer func() {
		cerr := c.step(ctx, transport.StepClose, func(*transport.Step) error {
			return sock.Close()
		})
		if cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := c.pause(ctx, delay.BeforeConnect); err != nil {
		return result, err
	}

	fmt.Fprintln(c.opts.Output, "Client connect")
	err = c.step(ctx, transport.StepConnect, func(*transport.Step) error {
		if err := sock.Connect(c.endpoint); err != nil {
			return &ConnectError{Endpoint: c.endpoint, Err: err}
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Connected = true

	if err := c.pause(ctx, delay.BeforeSend); err != nil {
		return result, err
	}

	err = c.step(ctx, transport.StepSend, func(step *transport.Step) error {
		n, err := sock.Send(c.opts.Payload)
		step.Bytes = n
		result.Sent = n
		return err
	})

	return result, err
}

func (c *Client) pause(ctx context.Context, at delay.Step) error {
	d := c.opts.Delay.For(at)
	if d <= 0 {
		return nil
	}

	return c.step(ctx, transport.StepDelay, func(step *transport.Step) error {
		step.Delay = c.opts.Delay.Apply(c.opts.Sleeper, at)
		return nil
	})
}

func (c *Client) step(ctx context.Context, name transport.StepName, fn func(step *transport.Step) error) error {
	step := &transport.Step{
		Role:     transport.RoleClient,
		Name:     name,
		Endpoint: c.endpoint,
	}

	return c.chain.Intercept(ctx, step, func(ctx context.Context, step *transport.Step) error {
		return fn(step)
	})
}
