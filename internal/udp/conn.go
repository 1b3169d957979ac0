package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"lobbynet/internal/endpoint"
)

const (
	readBufSize       = 64 * 1024
	defaultQueueDepth = 1024
	readErrBackoff    = 10 * time.Millisecond
)

var (
	ErrShortWrite = errors.New("short write")
	ErrClosed     = errors.New("transport closed")
)

type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Error is a socket failure. It is fatal to the role's networking until the
// transport is reopened.
type Error struct {
	Role Role
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Role, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Datagram is one received payload and its sender.
type Datagram struct {
	Payload []byte
	From    endpoint.Endpoint
	At      time.Time
}

type Conn struct {
	role  Role
	pc    *net.UDPConn
	queue chan Datagram

	dropped atomic.Uint64

	errMu   sync.Mutex
	readErr error

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// Open binds a UDP socket on port (0 picks an ephemeral port).
func Open(role Role, port int) (*Conn, error) {
	return OpenAddr(role, fmt.Sprintf(":%d", port))
}

// OpenAddr binds a UDP socket on addr ("host:port").
func OpenAddr(role Role, addr string) (*Conn, error) {
	return openAddr(role, addr, defaultQueueDepth)
}

func openAddr(role Role, addr string, depth int) (*Conn, error) {
	la, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &Error{Role: role, Op: "resolve " + addr, Err: err}
	}
	pc, err := net.ListenUDP("udp", la)
	if err != nil {
		return nil, &Error{Role: role, Op: "bind " + addr, Err: err}
	}
	c := &Conn{
		role:   role,
		pc:     pc,
		queue:  make(chan Datagram, depth),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) Role() Role { return c.role }

// LocalEndpoint is the bound address; an unspecified bind reports the
// unspecified address.
func (c *Conn) LocalEndpoint() endpoint.Endpoint {
	e, _ := endpoint.FromNetAddr(c.pc.LocalAddr())
	return e
}

// QueueDepth is the number of datagrams waiting for TryReceive.
func (c *Conn) QueueDepth() int { return len(c.queue) }

// Dropped counts datagrams discarded because the queue was full.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

// TakeReadErr returns the most recent receive error since the last call and
// clears it. Receive errors do not stop the reader.
func (c *Conn) TakeReadErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	err := c.readErr
	c.readErr = nil
	return err
}

// Send writes b to `to` as one datagram. A partial write is an error and is
// not retried.
func (c *Conn) Send(b []byte, to endpoint.Endpoint) error {
	select {
	case <-c.closed:
		return &Error{Role: c.role, Op: "send", Err: ErrClosed}
	default:
	}
	n, err := c.pc.WriteToUDPAddrPort(b, to.AddrPort())
	if err != nil {
		return &Error{Role: c.role, Op: "send to " + to.String(), Err: err}
	}
	if n != len(b) {
		return &Error{Role: c.role, Op: "send to " + to.String(), Err: fmt.Errorf("%w: sent %d of %d bytes", ErrShortWrite, n, len(b))}
	}
	return nil
}

// TryReceive pops one queued datagram without waiting.
func (c *Conn) TryReceive() (Datagram, bool) {
	select {
	case <-c.closed:
		return Datagram{}, false
	default:
	}
	select {
	case d := <-c.queue:
		return d, true
	default:
		return Datagram{}, false
	}
}

// Close releases the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if cerr := c.pc.Close(); cerr != nil {
			err = &Error{Role: c.role, Op: "close", Err: cerr}
		}
		<-c.done
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.done)
	buf := make([]byte, readBufSize)
	for {
		n, ap, err := c.pc.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Some platforms surface ICMP errors on unconnected sockets; keep reading.
			c.errMu.Lock()
			c.readErr = &Error{Role: c.role, Op: "receive", Err: err}
			c.errMu.Unlock()
			select {
			case <-c.closed:
				return
			case <-time.After(readErrBackoff):
			}
			continue
		}
		d := Datagram{
			Payload: append([]byte(nil), buf[:n]...),
			From:    endpoint.FromAddrPort(ap),
			At:      time.Now(),
		}
		select {
		case c.queue <- d:
		default:
			c.dropped.Add(1)
		}
	}
}
