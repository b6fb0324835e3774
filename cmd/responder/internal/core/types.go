package core

import (
	"context"
	"net"
)

// ConnectionHandler serves a single accepted connection with blocking I/O.
// It owns the connection and must close it.
type ConnectionHandler interface {
	HandleConnection(conn net.Conn)
}

// Runner is one server mode. Run accepts and serves connections until ctx is
// cancelled or the listening socket fails; it closes the listener on return.
type Runner interface {
	Run(ctx context.Context) error
	Addr() net.Addr
	Stats() *Stats
}

// Mode selects how connections are multiplexed.
type Mode string

const (
	// ModeBlocking handles one connection at a time on the accept loop.
	ModeBlocking Mode = "blocking"
	// ModeThreaded handles every connection on its own goroutine.
	ModeThreaded Mode = "threaded"
	// ModeNonBlocking drives all connections from a single event loop.
	ModeNonBlocking Mode = "nonblocking"
)
