package core

import (
	"context"
	"net"
	"sync"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
)

// Server is the blocking TCP accept loop.
// It depends ONLY on interfaces, not concrete implementations.
type Server struct {
	Listener          net.Listener
	ConnectionHandler ConnectionHandler

	// Concurrent hands each connection to its own goroutine. Otherwise the
	// next accept waits until the current connection is fully served.
	Concurrent bool

	stats   Stats
	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

// Run starts accepting connections.
func (s *Server) Run(ctx context.Context) error {
	// Cancellation unblocks Accept and any handler stuck on a silent peer.
	stop := context.AfterFunc(ctx, func() {
		s.Listener.Close()
		s.closeConnections()
	})
	defer stop()
	defer s.Listener.Close()

	// Handlers still running when Run returns are unblocked before the wait,
	// whether the listener was cancelled or failed.
	var wg sync.WaitGroup
	defer wg.Wait()
	defer s.closeConnections()

	for {
		logger.Debug("about to wait to accept connection")
		conn, err := s.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.stats.Accepted.Add(1)
		logger.Info("accepted connection", "remote_addr", conn.RemoteAddr())

		if !s.track(conn) {
			conn.Close()
			continue
		}

		if !s.Concurrent {
			s.handleConnection(conn)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) Addr() net.Addr {
	return s.Listener.Addr()
}

func (s *Server) Stats() *Stats {
	return &s.stats
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.untrack(conn)

	s.stats.Live.Add(1)
	defer s.stats.Live.Add(-1)
	defer s.stats.Finished.Add(1)

	// Delegate the entire lifecycle to the handler
	s.ConnectionHandler.HandleConnection(conn)
}

// track registers conn for shutdown. It reports false once the server is
// closing, in which case the caller owns conn.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for conn := range s.conns {
		conn.Close()
	}
}
