package lobby

import (
	"lobbynet/internal/endpoint"
	"lobbynet/internal/udp"
)

// Transport is the datagram socket a node drives. *udp.Conn implements it.
type Transport interface {
	Send(b []byte, to endpoint.Endpoint) error
	TryReceive() (udp.Datagram, bool)
	Close() error
}

// receiveHealth is implemented by transports that queue datagrams in the
// background and can lose some. Nodes poll it once per drain.
type receiveHealth interface {
	// Dropped is the running count of datagrams lost to a full queue.
	Dropped() uint64
	// TakeReadErr returns and clears the last receive error.
	TakeReadErr() error
}

var (
	_ Transport     = (*udp.Conn)(nil)
	_ receiveHealth = (*udp.Conn)(nil)
)
