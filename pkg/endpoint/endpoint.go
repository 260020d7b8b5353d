// Kunhua Huang 2026

package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"
)

// Fixed rendezvous addresses. Tests that drive the harness depend on the
// literal values, so they are not configurable.
const (
	IPv4Host = "127.0.0.1"
	IPv4Port = 5432

	IPv6Host = "::1"
	IPv6Port = 6432
)

var (
	ErrNoAddress      = errors.New("no address found")
	ErrFamilyMismatch = errors.New("address family mismatch")
)

type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// Domain returns the socket domain for the family.
func (f Family) Domain() int {
	if f == IPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// Network returns the Go network name used for resolution.
func (f Family) Network() string {
	if f == IPv6 {
		return "ip6"
	}
	return "ip4"
}

// Endpoint is the address a server binds to and a client connects to.
// IPv6 flow info is always zero: the resolver never reports one and
// unix.SockaddrInet6 has no field to carry it.
type Endpoint struct {
	Family Family
	Host   string
	Port   int
	ZoneID uint32
	Addr   netip.Addr
}

// New builds an endpoint from a concrete address, inferring the family.
func New(addr netip.Addr, port int) Endpoint {
	family := IPv4
	if addr.Is6() && !addr.Is4In6() {
		family = IPv6
	} else {
		addr = addr.Unmap()
	}

	return Endpoint{
		Family: family,
		Host:   addr.WithZone("").String(),
		Port:   port,
		Addr:   addr,
	}
}

// IPv4Endpoint is used as-is, there is no resolution step for IPv4.
func IPv4Endpoint() Endpoint {
	return New(netip.MustParseAddr(IPv4Host), IPv4Port)
}

func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, uint16(e.Port)).String()
}

func (e Endpoint) IsZero() bool {
	return !e.Addr.IsValid()
}

// Sockaddr converts the endpoint to the form the socket syscalls take.
func (e Endpoint) Sockaddr() unix.Sockaddr {
	if e.Family == IPv6 {
		sa := &unix.SockaddrInet6{Port: e.Port, ZoneId: e.ZoneID}
		sa.Addr = e.Addr.As16()
		return sa
	}

	sa := &unix.SockaddrInet4{Port: e.Port}
	sa.Addr = e.Addr.Unmap().As4()
	return sa
}

// FromSockaddr is the inverse of Sockaddr, used for getsockname/accept results.
func FromSockaddr(sa unix.Sockaddr) (Endpoint, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return New(netip.AddrFrom4(sa.Addr), sa.Port), nil
	case *unix.SockaddrInet6:
		addr := netip.AddrFrom16(sa.Addr)
		if sa.ZoneId != 0 {
			addr = addr.WithZone(strconv.FormatUint(uint64(sa.ZoneId), 10))
		}
		ep := New(addr, sa.Port)
		ep.ZoneID = sa.ZoneId
		return ep, nil
	default:
		return Endpoint{}, fmt.Errorf("unsupported socket address %T", sa)
	}
}

// Parse reads back the String form of an endpoint. The family must match,
// a client is never handed an address of the other family.
func Parse(family Family, s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", s, err)
	}

	ep := New(ap.Addr(), int(ap.Port()))
	if ep.Family != family {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w: want %s, got %s", s, ErrFamilyMismatch, family, ep.Family)
	}

	if zone := ap.Addr().Zone(); zone != "" {
		id, err := zoneIndex(zone)
		if err != nil {
			return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", s, err)
		}
		ep.ZoneID = id
	}

	return ep, nil
}

func zoneIndex(zone string) (uint32, error) {
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), nil
	}

	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, fmt.Errorf("zone %q: %w", zone, err)
	}
	return uint32(ifi.Index), nil
}
