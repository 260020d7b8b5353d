// Kunhua Huang 2026

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/transport"
)

const (
	EnvRole     = "SOCKHARNESS_ROLE"
	EnvEndpoint = "SOCKHARNESS_ENDPOINT"
	EnvRunID    = "SOCKHARNESS_RUN_ID"
)

// ErrNoEndpoint is returned when there is no endpoint to hand to the
// client, on either side of the split.
var ErrNoEndpoint = errors.New("client started without " + EnvEndpoint)

// RoleFromEnv tells the re-executed child apart from the launcher.
func RoleFromEnv() (transport.Role, error) {
	switch v := os.Getenv(EnvRole); v {
	case "", "server":
		return transport.RoleServer, nil
	case "client":
		return transport.RoleClient, nil
	default:
		return 0, fmt.Errorf("%s: unknown role %q", EnvRole, v)
	}
}

// Launch describes how the launcher starts the client process.
type Launch struct {
	// Path defaults to the running executable.
	Path string
	Args []string
	// Env is appended to the launcher's environment.
	Env []string

	Endpoint endpoint.Endpoint
	RunID    string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (l *Launch) command(ctx context.Context) (*exec.Cmd, error) {
	if l.Endpoint.IsZero() {
		return nil, ErrNoEndpoint
	}

	path := l.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}

	cmd := exec.CommandContext(ctx, path, l.Args...)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Env = append(cmd.Env,
		EnvRole+"="+transport.RoleClient.String(),
		EnvEndpoint+"="+l.Endpoint.String(),
		EnvRunID+"="+l.RunID,
	)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if l.Stdin != nil {
		cmd.Stdin = l.Stdin
	}
	if l.Stdout != nil {
		cmd.Stdout = l.Stdout
	}
	if l.Stderr != nil {
		cmd.Stderr = l.Stderr
	}

	return cmd, nil
}

// Peer is the client process seen from the launcher.
type Peer struct {
	cmd *exec.Cmd
}

func (p *Peer) PID() int {
	return p.cmd.Process.Pid
}

// Wait reaps the client and returns its exit status. It is called once the
// server role is over and never used to order the two roles.
func (p *Peer) Wait() (int, error) {
	err := p.cmd.Wait()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("wait for client: %w", err)
	}
}

// Split turns one process into the two roles. The launcher starts the
// client and stays the server; the child, recognised by its environment,
// is the client and gets no Peer. Nothing but the endpoint string and the
// run ID crosses the split.
func Split(ctx context.Context, l Launch) (transport.Role, *Peer, error) {
	role, err := RoleFromEnv()
	if err != nil {
		return 0, nil, err
	}
	if role == transport.RoleClient {
		return role, nil, nil
	}

	cmd, err := l.command(ctx)
	if err != nil {
		return 0, nil, err
	}
	if err := cmd.Start(); err != nil {
		return 0, nil, fmt.Errorf("start client: %w", err)
	}

	return transport.RoleServer, &Peer{cmd: cmd}, nil
}

// inherited reads what the launcher handed to the client.
func inherited(family endpoint.Family) (endpoint.Endpoint, string, error) {
	raw := os.Getenv(EnvEndpoint)
	if raw == "" {
		return endpoint.Endpoint{}, "", ErrNoEndpoint
	}

	ep, err := endpoint.Parse(family, raw)
	if err != nil {
		return endpoint.Endpoint{}, "", err
	}

	return ep, os.Getenv(EnvRunID), nil
}
