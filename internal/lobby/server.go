package lobby

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lobbynet/internal/endpoint"
	"lobbynet/internal/packetlog"
	"lobbynet/internal/proto"
	"lobbynet/internal/udp"
)

type ServerOptions struct {
	RunID     string
	PacketLog *packetlog.Logger
	Metrics   *Metrics

	// PingInterval pings every member this often; zero disables.
	PingInterval time.Duration
}

// Server hosts a session: it owns the server socket and the roster engine.
type Server struct {
	node
	engine *proto.Engine

	pingEvery time.Duration
	pingSeq   uint32
	lastPing  time.Time
}

func NewServer(conn Transport, engine *proto.Engine, opts ServerOptions) (*Server, error) {
	if conn == nil {
		return nil, errors.New("lobby: nil transport")
	}
	if engine == nil {
		return nil, errors.New("lobby: nil engine")
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Server{
		node: node{
			role:    udp.RoleServer.String(),
			runID:   opts.RunID,
			conn:    conn,
			plog:    opts.PacketLog,
			metrics: m,
		},
		engine:    engine,
		pingEvery: opts.PingInterval,
	}, nil
}

func (s *Server) Engine() *proto.Engine { return s.engine }

// Process drains and handles every queued datagram. It returns the number of
// datagrams consumed.
func (s *Server) Process(now time.Time) (int, error) {
	n, err := s.drain(func(d udp.Datagram, cmd proto.Command) error {
		wasMember := s.engine.Roster().IsMember(d.From)
		outs := s.engine.Handle(now, d.From, cmd)
		s.observe(d.From, wasMember, cmd, outs)
		return s.send(outs)
	})
	s.metrics.Members.Set(float64(s.engine.Stats().PlayersOnline))
	return n, err
}

// Tick is one scheduler step: drain, evict idle members, ping.
func (s *Server) Tick(now time.Time) error {
	if _, err := s.Process(now); err != nil {
		return err
	}

	if evicted, outs := s.engine.Sweep(now); len(evicted) > 0 {
		for _, ep := range evicted {
			slog.Warn("player evicted after idle timeout", "peer", ep.String())
		}
		s.metrics.Evictions.Add(float64(len(evicted)))
		s.metrics.Members.Set(float64(s.engine.Stats().PlayersOnline))
		if err := s.send(outs); err != nil {
			return err
		}
	}

	if s.pingEvery > 0 && now.Sub(s.lastPing) >= s.pingEvery {
		s.lastPing = now
		s.pingSeq++
		if err := s.send(s.engine.Pings(s.pingSeq)); err != nil {
			return err
		}
	}
	return nil
}

// Run ticks until ctx is done or the transport fails.
func (s *Server) Run(ctx context.Context, tick time.Duration) error {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			if err := s.Tick(now); err != nil {
				return err
			}
		}
	}
}

func (s *Server) Close() error { return s.conn.Close() }

func (s *Server) observe(from endpoint.Endpoint, wasMember bool, in proto.Command, outs []proto.Outbound) {
	for _, out := range outs {
		if e, ok := out.Cmd.(proto.Error); ok {
			s.metrics.ProtocolErrors.WithLabelValues(s.role, e.Code.String()).Inc()
			slog.Warn("protocol error sent", "peer", out.To.String(), "in_tag", in.Tag().String(), "code", e.Code.String())
		}
	}

	switch c := in.(type) {
	case proto.Knock:
		if len(outs) == 0 {
			return
		}
		switch r := outs[0].Cmd.(type) {
		case proto.Welcome:
			if wasMember {
				s.metrics.Knocks.WithLabelValues("duplicate").Inc()
				slog.Info("repeat join from seated player", "peer", from.String(), "slot", r.Slot)
				return
			}
			s.metrics.Knocks.WithLabelValues("admitted").Inc()
			slog.Info("player joined", "peer", from.String(), "slot", r.Slot, "name", proto.NormalizeName(c.Name), "broadcast", len(outs)-1)
		case proto.Error:
			s.metrics.Knocks.WithLabelValues("rejected").Inc()
		}
	case proto.Bye:
		if wasMember {
			slog.Info("player left", "peer", from.String())
		}
	default:
		if !wasMember && len(outs) == 0 {
			slog.Debug("dropping command from non-member", "peer", from.String(), "tag", in.Tag().String())
		}
	}
}
