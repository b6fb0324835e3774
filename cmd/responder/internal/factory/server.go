package factory

import (
	"fmt"
	"net"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/config"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/core"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/eventloop"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/protocol"
)

// ServerFactory creates the server mode selected by configuration
type ServerFactory struct {
	cfg *config.Config
}

// NewServerFactory creates a new server factory
func NewServerFactory(cfg *config.Config) *ServerFactory {
	return &ServerFactory{cfg: cfg}
}

// Create binds the listening socket and returns a runner for it
func (f *ServerFactory) Create() (core.Runner, error) {
	switch f.cfg.ServerMode {
	case core.ModeBlocking:
		return f.createBlockingServer(false)
	case core.ModeThreaded:
		return f.createBlockingServer(true)
	case core.ModeNonBlocking:
		return f.createEventLoop()
	default:
		return nil, fmt.Errorf("unknown server mode: %s", f.cfg.ServerMode)
	}
}

func (f *ServerFactory) createBlockingServer(concurrent bool) (core.Runner, error) {
	logger.Info("Creating blocking server",
		"addr", f.cfg.ListenAddr,
		"concurrent", concurrent,
		"chunk_size", f.cfg.ChunkSize)

	listener, err := net.Listen("tcp", f.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddr, err)
	}

	return &core.Server{
		Listener:          listener,
		ConnectionHandler: &protocol.Handler{ChunkSize: f.cfg.ChunkSize},
		Concurrent:        concurrent,
	}, nil
}

func (f *ServerFactory) createEventLoop() (core.Runner, error) {
	logger.Info("Creating non-blocking event loop",
		"addr", f.cfg.ListenAddr,
		"chunk_size", f.cfg.ChunkSize,
		"idle_wait", f.cfg.IdleWait,
		"conn_idle_timeout", f.cfg.ConnIdleTimeout)

	acceptor, err := eventloop.Listen(f.cfg.ListenAddr, f.cfg.ListenBacklog)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddr, err)
	}

	loop, err := eventloop.New(acceptor, eventloop.Options{
		ChunkSize:   f.cfg.ChunkSize,
		IdleWait:    f.cfg.IdleWait,
		IdleTimeout: f.cfg.ConnIdleTimeout,
	})
	if err != nil {
		acceptor.Close()
		return nil, fmt.Errorf("failed to create event loop: %w", err)
	}
	return loop, nil
}
