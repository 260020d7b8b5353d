package transport

import (
	"io"
	"os"

	"github.com/ecstasoy/sockharness/pkg/delay"
	"github.com/ecstasoy/sockharness/pkg/endpoint"
)

const (
	// Backlog is fixed at one pending connection. A second concurrent
	// attempt is refused by the kernel, not by the harness.
	Backlog = 1

	// RecvBufferSize is the ceiling of the single read the server performs.
	RecvBufferSize = 1024
)

// ------------------- Server Options -------------------

type ServerOptions struct {
	Delay        delay.Plan
	Sleeper      delay.Sleeper
	Output       io.Writer
	Interceptors []Interceptor
	OnListen     func(bound endpoint.Endpoint)
}

func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		Sleeper: delay.RealSleeper,
		Output:  os.Stdout,
	}
}

type ServerOption func(*ServerOptions)

func WithServerDelay(plan delay.Plan, sleeper delay.Sleeper) ServerOption {
	return func(opts *ServerOptions) {
		opts.Delay = plan
		if sleeper != nil {
			opts.Sleeper = sleeper
		}
	}
}

func WithServerOutput(w io.Writer) ServerOption {
	return func(opts *ServerOptions) {
		opts.Output = w
	}
}

func WithServerInterceptors(interceptors ...Interceptor) ServerOption {
	return func(opts *ServerOptions) {
		opts.Interceptors = append(opts.Interceptors, interceptors...)
	}
}

// WithOnListen reports the bound address once listen succeeded. It exists
// for callers that bind port 0; the harness itself never waits on it.
func WithOnListen(fn func(bound endpoint.Endpoint)) ServerOption {
	return func(opts *ServerOptions) {
		opts.OnListen = fn
	}
}

// ------------------- Client Options -------------------

type ClientOptions struct {
	Delay        delay.Plan
	Sleeper      delay.Sleeper
	Output       io.Writer
	Payload      []byte
	Interceptors []Interceptor
}

func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Sleeper: delay.RealSleeper,
		Output:  os.Stdout,
		Payload: []byte(delay.PayloadBase),
	}
}

type ClientOption func(*ClientOptions)

func WithClientDelay(plan delay.Plan, sleeper delay.Sleeper) ClientOption {
	return func(opts *ClientOptions) {
		opts.Delay = plan
		if sleeper != nil {
			opts.Sleeper = sleeper
		}
	}
}

func WithClientOutput(w io.Writer) ClientOption {
	return func(opts *ClientOptions) {
		opts.Output = w
	}
}

func WithPayload(payload []byte) ClientOption {
	return func(opts *ClientOptions) {
		opts.Payload = payload
	}
}

func WithClientInterceptors(interceptors ...Interceptor) ClientOption {
	return func(opts *ClientOptions) {
		opts.Interceptors = append(opts.Interceptors, interceptors...)
	}
}
