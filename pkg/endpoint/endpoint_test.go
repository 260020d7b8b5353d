package endpoint_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
)

type fakeResolver struct {
	addrs   []netip.Addr
	err     error
	calls   int
	network string
}

func (r *fakeResolver) LookupNetIP(_ context.Context, network, _ string) ([]netip.Addr, error) {
	r.calls++
	r.network = network
	return r.addrs, r.err
}

func TestIPv4EndpointIsLiteral(t *testing.T) {
	ep := endpoint.IPv4Endpoint()

	require.Equal(t, endpoint.IPv4, ep.Family)
	require.Equal(t, 5432, ep.Port)
	require.Equal(t, "127.0.0.1:5432", ep.String())

	sa, ok := ep.Sockaddr().(*unix.SockaddrInet4)
	require.True(t, ok)
	require.Equal(t, [4]byte{127, 0, 0, 1}, sa.Addr)
	require.Equal(t, 5432, sa.Port)
}

func TestResolveIPv6KeepsFirstResult(t *testing.T) {
	r := &fakeResolver{addrs: []netip.Addr{
		netip.MustParseAddr("127.0.0.1"),
		netip.MustParseAddr("::1"),
		netip.MustParseAddr("::2"),
	}}

	ep, err := endpoint.Resolve(context.Background(), r, endpoint.IPv6, "localhost", 6432)
	require.NoError(t, err)
	require.Equal(t, 1, r.calls)
	require.Equal(t, "ip6", r.network)
	require.Equal(t, endpoint.IPv6, ep.Family)
	require.Equal(t, "[::1]:6432", ep.String())

	sa, ok := ep.Sockaddr().(*unix.SockaddrInet6)
	require.True(t, ok)
	require.Equal(t, netip.MustParseAddr("::1").As16(), sa.Addr)
	require.Equal(t, 6432, sa.Port)
}

func TestResolveNoAddress(t *testing.T) {
	r := &fakeResolver{addrs: []netip.Addr{netip.MustParseAddr("127.0.0.1")}}

	_, err := endpoint.Resolve(context.Background(), r, endpoint.IPv6, "localhost", 6432)
	require.ErrorIs(t, err, endpoint.ErrNoAddress)
}

func TestResolveError(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeResolver{err: boom}

	_, err := endpoint.Resolve(context.Background(), r, endpoint.IPv6, "nowhere", 6432)
	require.ErrorIs(t, err, boom)
}

func TestResolveIPv6Loopback(t *testing.T) {
	ep, err := endpoint.ResolveIPv6(context.Background(), endpoint.IPv6Host, endpoint.IPv6Port)
	require.NoError(t, err)
	require.Equal(t, "[::1]:6432", ep.String())
}

func TestParseRoundTrip(t *testing.T) {
	for _, ep := range []endpoint.Endpoint{
		endpoint.IPv4Endpoint(),
		endpoint.New(netip.MustParseAddr("::1"), 6432),
	} {
		got, err := endpoint.Parse(ep.Family, ep.String())
		require.NoError(t, err)
		require.Equal(t, ep, got)
	}
}

func TestParseFamilyMismatch(t *testing.T) {
	_, err := endpoint.Parse(endpoint.IPv6, "127.0.0.1:5432")
	require.ErrorIs(t, err, endpoint.ErrFamilyMismatch)

	_, err = endpoint.Parse(endpoint.IPv4, "localhost")
	require.Error(t, err)
}

func TestFromSockaddr(t *testing.T) {
	ep, err := endpoint.FromSockaddr(&unix.SockaddrInet4{Port: 4000, Addr: [4]byte{127, 0, 0, 1}})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4000", ep.String())

	ep, err = endpoint.FromSockaddr(&unix.SockaddrInet6{Port: 4001, Addr: netip.MustParseAddr("::1").As16()})
	require.NoError(t, err)
	require.Equal(t, endpoint.IPv6, ep.Family)
	require.Equal(t, "[::1]:4001", ep.String())

	_, err = endpoint.FromSockaddr(&unix.SockaddrUnix{Name: "/tmp/x"})
	require.Error(t, err)
}

func TestNewUnmapsIPv4InIPv6(t *testing.T) {
	ep := endpoint.New(netip.MustParseAddr("::ffff:127.0.0.1"), 1)
	require.Equal(t, endpoint.IPv4, ep.Family)
	require.Equal(t, "127.0.0.1", ep.Host)
}
