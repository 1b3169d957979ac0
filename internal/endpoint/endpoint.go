package endpoint

import (
	"net"
	"net/netip"
)

// Endpoint is a peer address. The zero value is "no endpoint".
// Two endpoints are equal (==) iff address and port match exactly.
type Endpoint struct {
	ap netip.AddrPort
}

// New builds an endpoint, unmapping IPv4-in-IPv6 addresses so a peer seen on a
// dual-stack socket compares equal to the same peer resolved over IPv4.
func New(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{ap: netip.AddrPortFrom(addr.Unmap(), port)}
}

func FromAddrPort(ap netip.AddrPort) Endpoint {
	return New(ap.Addr(), ap.Port())
}

// FromNetAddr converts a *net.UDPAddr (or anything whose String is host:port).
func FromNetAddr(a net.Addr) (Endpoint, bool) {
	switch v := a.(type) {
	case nil:
		return Endpoint{}, false
	case *net.UDPAddr:
		if v == nil || v.IP == nil {
			return Endpoint{}, false
		}
		return FromAddrPort(v.AddrPort()), true
	}
	ap, err := netip.ParseAddrPort(a.String())
	if err != nil {
		return Endpoint{}, false
	}
	return FromAddrPort(ap), true
}

// Parse accepts "ip:port".
func Parse(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	return FromAddrPort(ap), nil
}

func MustParse(s string) Endpoint {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Endpoint) Addr() netip.Addr         { return e.ap.Addr() }
func (e Endpoint) Port() uint16             { return e.ap.Port() }
func (e Endpoint) AddrPort() netip.AddrPort { return e.ap }
func (e Endpoint) IsZero() bool             { return e == Endpoint{} }

func (e Endpoint) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(e.ap)
}

func (e Endpoint) String() string {
	if e.IsZero() {
		return "-"
	}
	return e.ap.String()
}
