// Kunhua Huang 2026

package tcp

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
)

var ErrClosed = errors.New("use of closed socket")

// Socket is a blocking TCP stream socket driven by raw syscalls. Each
// method maps to exactly one syscall (plus EINTR restarts), which keeps
// the syscall sequence seen by a tracer identical to the role's steps.
type Socket struct {
	family endpoint.Family

	mu     sync.Mutex
	fd     int
	closed bool
}

func NewSocket(family endpoint.Family) (*Socket, error) {
	fd, err := unix.Socket(family.Domain(), unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket syscall: %w", err)
	}

	return &Socket{family: family, fd: fd}, nil
}

func (s *Socket) Family() endpoint.Family {
	return s.family
}

func (s *Socket) rawFD() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return -1, ErrClosed
	}
	return s.fd, nil
}

func (s *Socket) Bind(ep endpoint.Endpoint) error {
	fd, err := s.rawFD()
	if err != nil {
		return err
	}

	if err := unix.Bind(fd, ep.Sockaddr()); err != nil {
		return fmt.Errorf("bind %s: %w", ep, err)
	}
	return nil
}

func (s *Socket) Listen(backlog int) error {
	fd, err := s.rawFD()
	if err != nil {
		return err
	}

	if err := unix.Listen(fd, backlog); err != nil {
		return fmt.Errorf("listen syscall: %w", err)
	}
	return nil
}

// Accept blocks until a peer connects. There is no timeout.
func (s *Socket) Accept() (*Socket, endpoint.Endpoint, error) {
	fd, err := s.rawFD()
	if err != nil {
		return nil, endpoint.Endpoint{}, err
	}

	var (
		nfd int
		sa  unix.Sockaddr
	)
	err = ignoringEINTR(func() error {
		nfd, sa, err = unix.Accept4(fd, unix.SOCK_CLOEXEC)
		return err
	})
	if err != nil {
		return nil, endpoint.Endpoint{}, fmt.Errorf("accept syscall: %w", err)
	}

	conn := &Socket{family: s.family, fd: nfd}

	peer, err := endpoint.FromSockaddr(sa)
	if err != nil {
		_ = conn.Close()
		return nil, endpoint.Endpoint{}, fmt.Errorf("accept: %w", err)
	}

	return conn, peer, nil
}

// Connect is attempted once. A refused connection is returned as-is.
func (s *Socket) Connect(ep endpoint.Endpoint) error {
	fd, err := s.rawFD()
	if err != nil {
		return err
	}

	return unix.Connect(fd, ep.Sockaddr())
}

// Send issues a single write. A short write is reported through n and
// never completed.
func (s *Socket) Send(p []byte) (int, error) {
	fd, err := s.rawFD()
	if err != nil {
		return 0, err
	}

	var n int
	err = ignoringEINTR(func() error {
		n, err = unix.Write(fd, p)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("send syscall: %w", err)
	}
	return n, nil
}

// Recv issues a single read. n == 0 with a nil error means the peer
// closed its side.
func (s *Socket) Recv(p []byte) (int, error) {
	fd, err := s.rawFD()
	if err != nil {
		return 0, err
	}

	var n int
	err = ignoringEINTR(func() error {
		n, err = unix.Read(fd, p)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("recv syscall: %w", err)
	}
	return n, nil
}

func (s *Socket) LocalEndpoint() (endpoint.Endpoint, error) {
	fd, err := s.rawFD()
	if err != nil {
		return endpoint.Endpoint{}, err
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("getsockname syscall: %w", err)
	}
	return endpoint.FromSockaddr(sa)
}

// Close releases the descriptor. It is safe to call more than once; only
// the first call reaches the kernel.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("close syscall: %w", err)
	}
	return nil
}

func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}
