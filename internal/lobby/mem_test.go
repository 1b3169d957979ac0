package lobby

import (
	"context"
	"fmt"
	"sync"

	"lobbynet/internal/endpoint"
	"lobbynet/internal/udp"
)

// memNet is an in-process datagram network keyed by endpoint.
type memNet struct {
	mu    sync.Mutex
	conns map[endpoint.Endpoint]*memConn
}

func newMemNet() *memNet {
	return &memNet{conns: map[endpoint.Endpoint]*memConn{}}
}

func (n *memNet) open(addr string) *memConn {
	c := &memConn{net: n, local: endpoint.MustParse(addr)}
	n.mu.Lock()
	n.conns[c.local] = c
	n.mu.Unlock()
	return c
}

type memConn struct {
	net   *memNet
	local endpoint.Endpoint

	mu       sync.Mutex
	queue    []udp.Datagram
	sent     []memSent
	failSend error
	closed   bool

	dropped uint64
	readErr error
}

type memSent struct {
	To      endpoint.Endpoint
	Payload []byte
}

func (c *memConn) Send(b []byte, to endpoint.Endpoint) error {
	c.mu.Lock()
	if c.failSend != nil {
		err := c.failSend
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, memSent{To: to, Payload: append([]byte(nil), b...)})
	c.mu.Unlock()

	c.net.mu.Lock()
	dst := c.net.conns[to]
	c.net.mu.Unlock()
	if dst != nil {
		dst.inject(c.local, b)
	}
	return nil
}

func (c *memConn) inject(from endpoint.Endpoint, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, udp.Datagram{Payload: append([]byte(nil), b...), From: from})
}

func (c *memConn) TryReceive() (udp.Datagram, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return udp.Datagram{}, false
	}
	d := c.queue[0]
	c.queue = c.queue[1:]
	return d, true
}

func (c *memConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *memConn) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *memConn) TakeReadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.readErr
	c.readErr = nil
	return err
}

// takeSent returns and clears what this conn has sent.
func (c *memConn) takeSent() []memSent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

type staticResolver map[string]endpoint.Endpoint

func (r staticResolver) Resolve(_ context.Context, host string, _ uint16) (endpoint.Endpoint, error) {
	if ep, ok := r[host]; ok {
		return ep, nil
	}
	return endpoint.Endpoint{}, fmt.Errorf("%w: %s", endpoint.ErrUnknownHost, host)
}
