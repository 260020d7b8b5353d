// Kunhua Huang 2026

package endpoint

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// ResolveIPv6 resolves host for IPv6 stream sockets and keeps the first
// result. The harness calls it once, before the role split, so both roles
// share the same value.
func ResolveIPv6(ctx context.Context, host string, port int) (Endpoint, error) {
	return Resolve(ctx, net.DefaultResolver, IPv6, host, port)
}

func Resolve(ctx context.Context, r Resolver, family Family, host string, port int) (Endpoint, error) {
	addrs, err := r.LookupNetIP(ctx, family.Network(), host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("resolve %s %s: %w", family, host, err)
	}

	for _, addr := range addrs {
		ep := New(addr, port)
		if ep.Family != family {
			continue
		}

		if zone := addr.Zone(); zone != "" {
			id, err := zoneIndex(zone)
			if err != nil {
				return Endpoint{}, fmt.Errorf("resolve %s %s: %w", family, host, err)
			}
			ep.ZoneID = id
		}

		return ep, nil
	}

	return Endpoint{}, fmt.Errorf("resolve %s %s: %w", family, host, ErrNoAddress)
}

// ForFamily returns the fixed endpoint of the given family.
func ForFamily(ctx context.Context, family Family) (Endpoint, error) {
	switch family {
	case IPv4:
		return IPv4Endpoint(), nil
	case IPv6:
		return ResolveIPv6(ctx, IPv6Host, IPv6Port)
	default:
		return Endpoint{}, fmt.Errorf("unsupported address family %s", family)
	}
}
