package lobby

import (
	"fmt"
	"log/slog"

	"lobbynet/internal/packetlog"
	"lobbynet/internal/proto"
	"lobbynet/internal/udp"
)

// node is the transport plumbing shared by Server and Client.
type node struct {
	role    string
	runID   string
	conn    Transport
	plog    *packetlog.Logger
	metrics *Metrics

	dropped uint64 // last Dropped() seen from the transport
}

// checkReceive reports queue overflow and returns the receive error the
// transport recorded since the previous drain, if any.
func (n *node) checkReceive() error {
	h, ok := n.conn.(receiveHealth)
	if !ok {
		return nil
	}
	if total := h.Dropped(); total > n.dropped {
		lost := total - n.dropped
		n.dropped = total
		n.metrics.Dropped.WithLabelValues(n.role).Add(float64(lost))
		slog.Warn("receive queue overflow", "role", n.role, "dropped", lost, "dropped_total", total)
	}
	err := h.TakeReadErr()
	if err != nil {
		n.metrics.ReceiveErrors.WithLabelValues(n.role).Inc()
		slog.Error("receive failed", "role", n.role, "err", err)
	}
	return err
}

// drain pops datagrams until the transport has none queued. Datagrams that do
// not decode are logged and dropped; fn sees only valid commands. A pending
// receive error is returned before anything is popped; the first error from
// fn stops the drain.
func (n *node) drain(fn func(d udp.Datagram, cmd proto.Command) error) (int, error) {
	if err := n.checkReceive(); err != nil {
		return 0, err
	}
	count := 0
	for {
		d, ok := n.conn.TryReceive()
		if !ok {
			return count, nil
		}
		count++
		n.metrics.Datagrams.WithLabelValues(n.role, "in").Inc()

		rec := packetlog.Record{
			RunID:     n.runID,
			Timestamp: proto.NowTS(),
			Type:      "udp",
			Role:      n.role,
			Direction: "in",
			Source:    d.From.String(),
			Length:    len(d.Payload),
		}

		cmd, err := proto.Decode(d.Payload)
		if err != nil {
			n.metrics.Malformed.WithLabelValues(n.role).Inc()
			slog.Debug("discarding malformed datagram", "role", n.role, "peer", d.From.String(), "len", len(d.Payload), "err", err)
			rec.Message = fmt.Sprintf("err=%v head=%s", err, proto.ToHex(d.Payload, 16))
			n.plog.Log(rec)
			continue
		}
		rec.Tag = cmd.Tag().String()
		rec.Message = proto.Describe(cmd)
		n.plog.Log(rec)

		if err := fn(d, cmd); err != nil {
			return count, err
		}
	}
}

// send encodes and writes outs in order. A transport failure is returned
// immediately and not retried.
func (n *node) send(outs []proto.Outbound) error {
	for _, out := range outs {
		b, err := proto.Encode(out.Cmd)
		if err != nil {
			return fmt.Errorf("encode %T: %w", out.Cmd, err)
		}
		sendErr := n.conn.Send(b, out.To)
		rec := packetlog.Record{
			RunID:       n.runID,
			Timestamp:   proto.NowTS(),
			Type:        "udp",
			Role:        n.role,
			Direction:   "out",
			Destination: out.To.String(),
			Length:      len(b),
			Tag:         out.Cmd.Tag().String(),
			Message:     proto.Describe(out.Cmd),
		}
		if sendErr != nil {
			rec.Message = fmt.Sprintf("%s err=%v", rec.Message, sendErr)
			n.plog.Log(rec)
			n.metrics.SendFailures.WithLabelValues(n.role).Inc()
			slog.Error("send failed", "role", n.role, "peer", out.To.String(), "tag", out.Cmd.Tag().String(), "err", sendErr)
			return sendErr
		}
		n.plog.Log(rec)
		n.metrics.Datagrams.WithLabelValues(n.role, "out").Inc()
	}
	return nil
}
