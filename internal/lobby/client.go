package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lobbynet/internal/endpoint"
	"lobbynet/internal/packetlog"
	"lobbynet/internal/proto"
	"lobbynet/internal/udp"
)

type ClientOptions struct {
	RunID     string
	PacketLog *packetlog.Logger
	Metrics   *Metrics

	// Resolver defaults to endpoint.NetResolver.
	Resolver endpoint.Resolver

	// ServerPort is used when the joined host carries no port.
	ServerPort uint16
}

// Client joins a remote session and mirrors its roster.
type Client struct {
	node
	session    *proto.Session
	resolver   endpoint.Resolver
	serverPort uint16
	pingSeq    uint32

	mu      sync.Mutex
	lastErr error
}

func NewClient(conn Transport, session *proto.Session, opts ClientOptions) (*Client, error) {
	if conn == nil {
		return nil, errors.New("lobby: nil transport")
	}
	if session == nil {
		return nil, errors.New("lobby: nil session")
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}
	r := opts.Resolver
	if r == nil {
		r = endpoint.NetResolver{}
	}
	return &Client{
		node: node{
			role:    udp.RoleClient.String(),
			runID:   opts.RunID,
			conn:    conn,
			plog:    opts.PacketLog,
			metrics: m,
		},
		session:    session,
		resolver:   r,
		serverPort: opts.ServerPort,
	}, nil
}

func (c *Client) Session() *proto.Session { return c.session }

func (c *Client) CurrentStatus() proto.Status { return c.session.Status() }

func (c *Client) CurrentRoster() [proto.PlayerCount]proto.PlayerEntry { return c.session.Roster() }

// LastError is the most recent join or session failure (resolution, transport
// or an Error command from the server).
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Join resolves host and knocks on it.
func (c *Client) Join(ctx context.Context, host string) error {
	ep, err := c.resolver.Resolve(ctx, host, c.serverPort)
	if err != nil {
		err = fmt.Errorf("join %s: %w", host, err)
		c.setErr(err)
		return err
	}
	c.setErr(nil)
	slog.Info("joining session", "host", host, "server", ep.String())
	if err := c.send(c.session.Join(ep)); err != nil {
		c.setErr(err)
		return err
	}
	return nil
}

// Knock re-sends the join request while still connecting.
func (c *Client) Knock() error {
	if c.session.Status() != proto.StatusConnecting {
		return nil
	}
	return c.send(c.session.Join(c.session.ServerEndpoint()))
}

// Leave sends Bye (if joined) and returns the session to idle.
func (c *Client) Leave() error {
	return c.send(c.session.Leave())
}

// Ping sends the next sequence number to the server when connected.
func (c *Client) Ping() error {
	c.pingSeq++
	return c.send(c.session.Ping(c.pingSeq))
}

// Process drains and handles every queued datagram. Transport failures are
// also recorded as LastError.
func (c *Client) Process() (int, error) {
	n, err := c.drain(func(d udp.Datagram, cmd proto.Command) error {
		server := c.session.ServerEndpoint()
		if d.From != server {
			slog.Debug("discarding command from unexpected peer", "peer", d.From.String(), "server", server.String(), "tag", cmd.Tag().String())
			return nil
		}

		before := c.session.Status()
		outs, err := c.session.Handle(d.From, cmd)
		var re *proto.RemoteError
		if errors.As(err, &re) {
			c.setErr(err)
			c.metrics.ProtocolErrors.WithLabelValues(c.role, re.Code.String()).Inc()
			slog.Warn("server reported error", "server", server.String(), "code", re.Code.String(), "status", before.String())
		}
		if after := c.session.Status(); after != before {
			slog.Info("session status changed", "from", before.String(), "to", after.String(), "slot", c.session.Slot())
		}
		return c.send(outs)
	})
	if err != nil {
		c.setErr(err)
	}
	return n, err
}

// Run ticks until ctx is done or the transport fails.
func (c *Client) Run(ctx context.Context, tick time.Duration) error {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := c.Process(); err != nil {
				return err
			}
		}
	}
}

// Close leaves the session (best effort) and releases the socket.
func (c *Client) Close() error {
	if err := c.Leave(); err != nil {
		slog.Debug("leave on close failed", "err", err)
	}
	return c.conn.Close()
}
