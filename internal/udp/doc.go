// Package udp is the datagram transport for the lobby.
//
// Each role (client or server) owns one bound UDP socket. A reader goroutine
// queues every received datagram, whatever its size, so TryReceive can poll
// without blocking the caller's tick. Sends are fire-and-forget.
package udp
