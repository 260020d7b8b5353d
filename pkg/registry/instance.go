// Kunhua Huang 2026

package registry

import (
	"fmt"
	"os"
	"time"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

// RoleInstance is one side of a run as seen from outside the sockets.
type RoleInstance struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	Role     string `json:"role"`
	Family   string `json:"family"`
	Endpoint string `json:"endpoint"`
	PID      int    `json:"pid"`
	State    State  `json:"state"`
	Error    string `json:"error,omitempty"`

	RegisterTime time.Time `json:"register_time"`
	UpdateTime   time.Time `json:"update_time"`
}

type State int

const (
	StateInit State = iota
	StateCreated
	StateBound
	StateListening
	StateAccepted
	StateReceived
	StateConnected
	StateSent
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateInit:      "init",
	StateCreated:   "created",
	StateBound:     "bound",
	StateListening: "listening",
	StateAccepted:  "accepted",
	StateReceived:  "received",
	StateConnected: "connected",
	StateSent:      "sent",
	StateClosed:    "closed",
	StateFailed:    "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("registry: invalid state %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("registry: unknown state %q", text)
}

// Terminal reports whether no further transition follows.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

func NewRoleInstance(runID string, role transport.Role, ep endpoint.Endpoint) *RoleInstance {
	now := time.Now()
	return &RoleInstance{
		ID:           Key(runID, role.String()),
		RunID:        runID,
		Role:         role.String(),
		Family:       ep.Family.String(),
		Endpoint:     ep.String(),
		PID:          os.Getpid(),
		State:        StateInit,
		RegisterTime: now,
		UpdateTime:   now,
	}
}

func Key(runID, role string) string {
	return fmt.Sprintf("%s/%s", runID, role)
}

func (ri *RoleInstance) Clone() *RoleInstance {
	c := *ri
	return &c
}
