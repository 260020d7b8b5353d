// Kunhua Huang 2026

package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
)

type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

type StepName string

const (
	StepSocket    StepName = "socket"
	StepDelay     StepName = "delay"
	StepBind      StepName = "bind"
	StepListen    StepName = "listen"
	StepAccept    StepName = "accept"
	StepRecv      StepName = "recv"
	StepConnect   StepName = "connect"
	StepSend      StepName = "send"
	StepCloseConn StepName = "close_conn"
	StepClose     StepName = "close"
)

// Step is one blocking socket operation of a role. Interceptors see it
// before and after the operation runs; Bytes is filled in by recv and send.
type Step struct {
	Role     Role
	Name     StepName
	Endpoint endpoint.Endpoint
	Delay    time.Duration
	Bytes    int
}

func (s *Step) String() string {
	return fmt.Sprintf("%s %s", s.Role, s.Name)
}

type Invoker func(ctx context.Context, step *Step) error

type Interceptor func(ctx context.Context, step *Step, invoker Invoker) error

// ServerRole binds, listens, accepts one connection and reads one buffer.
// The context is handed to interceptors only: no socket call is cancelled.
type ServerRole interface {
	Run(ctx context.Context) (*ServerResult, error)
}

// ClientRole connects and sends one payload.
type ClientRole interface {
	Run(ctx context.Context) (*ClientResult, error)
}

type ServerResult struct {
	Accepted bool
	Peer     endpoint.Endpoint
	// Data is the first chunk read from the peer, nil when the peer closed
	// without sending.
	Data []byte
	EOF  bool
}

type ClientResult struct {
	Connected bool
	Sent      int
}
