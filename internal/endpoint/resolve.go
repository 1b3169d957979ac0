package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

var ErrUnknownHost = errors.New("unknown host")

// Resolver turns a user-supplied host into an endpoint. host may carry its own
// port ("example.org:4000"); otherwise defaultPort is used.
type Resolver interface {
	Resolve(ctx context.Context, host string, defaultPort uint16) (Endpoint, error)
}

// NetResolver resolves through net.Resolver, preferring IPv4 results.
type NetResolver struct {
	R *net.Resolver
}

func (r NetResolver) Resolve(ctx context.Context, host string, defaultPort uint16) (Endpoint, error) {
	name, port, err := splitHostPort(host, defaultPort)
	if err != nil {
		return Endpoint{}, err
	}
	if ip, err := netip.ParseAddr(name); err == nil {
		return New(ip, port), nil
	}

	res := r.R
	if res == nil {
		res = net.DefaultResolver
	}
	ips, err := res.LookupNetIP(ctx, "ip", name)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %s: %v", ErrUnknownHost, name, err)
	}
	if len(ips) == 0 {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrUnknownHost, name)
	}
	pick := ips[0]
	for _, ip := range ips {
		if ip.Unmap().Is4() {
			pick = ip
			break
		}
	}
	return New(pick, port), nil
}

func splitHostPort(host string, defaultPort uint16) (string, uint16, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, fmt.Errorf("%w: empty hostname", ErrUnknownHost)
	}
	h, p, err := net.SplitHostPort(host)
	if err != nil {
		// No port component (or a bare IPv6 literal).
		return strings.Trim(host, "[]"), defaultPort, nil
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q in %q", p, host)
	}
	return h, uint16(n), nil
}
