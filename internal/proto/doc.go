// Package proto implements the lobby wire protocol and its two dispatchers.
//
// Commands are fixed-layout binary records: a one-byte tag followed by the
// variant's fields, big-endian, with names stored in fixed 256-byte NUL-padded
// buffers. Engine interprets commands on the server side against a
// state.Roster; Session is the client-side state machine. Both are pure: they
// return the commands to send and leave transport to the caller.
package proto
