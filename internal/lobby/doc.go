// Package lobby runs the poll-driven client and server nodes.
//
// Each node owns one transport and one protocol state holder (a proto.Engine
// for the server, a proto.Session for the client). Process drains every
// queued datagram, decodes it, dispatches it and sends the replies; it never
// blocks. Run calls Process from a ticker until the context ends.
package lobby
