package eventloop

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/core"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
)

// Listener is the accepting side of the loop. TryAccept must never block:
// it returns ErrWouldBlock when no connection is pending and any other error
// only when the listener can no longer be used.
type Listener interface {
	TryAccept() (Stream, error)
	Addr() net.Addr
	Close() error
}

// Options tune the loop.
type Options struct {
	// ChunkSize caps the bytes moved by a single read or write.
	ChunkSize int
	// IdleWait bounds how long an iteration with no progress may wait for
	// socket readiness. Zero busy-polls.
	IdleWait time.Duration
	// IdleTimeout drops connections that made no progress for this long.
	// Zero keeps idle connections forever.
	IdleTimeout time.Duration
}

// Loop multiplexes every live connection on the goroutine that calls Run.
// Nothing else may touch its connections.
type Loop struct {
	listener Listener
	opts     Options
	poller   poller
	now      func() time.Time

	conns     []*Connection
	completed []int
	nextID    uint64
	stats     core.Stats
}

// New creates a loop that takes ownership of listener.
func New(listener Listener, opts Options) (*Loop, error) {
	l := &Loop{
		listener: listener,
		opts:     opts,
		poller:   nopPoller{},
		now:      time.Now,
	}

	if opts.IdleWait > 0 {
		p, err := newPoller()
		if err != nil {
			return nil, err
		}
		l.poller = p
		if f, ok := listener.(fileDescriptor); ok {
			if err := p.add(f.Fd(), interestRead); err != nil {
				p.close()
				return nil, fmt.Errorf("register listener: %w", err)
			}
		}
	}

	return l, nil
}

// Run drives the loop until ctx is cancelled or the listener fails. It
// closes the listener and every live connection before returning.
func (l *Loop) Run(ctx context.Context) error {
	defer l.shutdown()

	logger.Info("event loop started", "addr", l.listener.Addr(), "chunk_size", l.opts.ChunkSize, "idle_wait", l.opts.IdleWait)
	for ctx.Err() == nil {
		progressed, err := l.tick()
		if err != nil {
			return err
		}
		if !progressed && l.opts.IdleWait > 0 {
			if err := l.poller.wait(l.opts.IdleWait); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loop) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Loop) Stats() *core.Stats {
	return &l.stats
}

// tick runs one iteration: one accept attempt, one advance per live
// connection in collection order, then removal of everything that completed.
// It reports whether anything moved.
func (l *Loop) tick() (bool, error) {
	l.stats.Iterations.Add(1)
	progressed := false

	stream, err := l.listener.TryAccept()
	switch {
	case err == nil:
		l.register(stream)
		progressed = true
	case errors.Is(err, ErrWouldBlock):
	default:
		return false, err
	}

	now := l.now()
	l.completed = l.completed[:0]
	for i, c := range l.conns {
		outcome, err := c.advance(now)
		switch outcome {
		case Pending:
			if l.opts.IdleTimeout > 0 && c.idleFor(now) >= l.opts.IdleTimeout {
				l.fail(i, c, ErrIdleTimeout)
				continue
			}
			if !c.blocked {
				progressed = true
			}
			if err := l.watch(c); err != nil {
				l.fail(i, c, err)
			}
		case Finished:
			l.stats.Finished.Add(1)
			l.completed = append(l.completed, i)
		case Failed:
			l.fail(i, c, err)
		}
	}

	if len(l.completed) > 0 {
		progressed = true
	}
	// Descending order keeps the earlier indices valid while removing.
	for j := len(l.completed) - 1; j >= 0; j-- {
		i := l.completed[j]
		c := l.conns[i]
		l.release(c)
		l.conns = slices.Delete(l.conns, i, i+1)
		logger.Info("finished processing connection", "conn", c.id, "index", i)
	}
	l.stats.Live.Store(int64(len(l.conns)))

	return progressed, nil
}

func (l *Loop) register(stream Stream) {
	l.nextID++
	c := newConnection(l.nextID, stream, l.opts.ChunkSize, l.now())
	if err := l.watch(c); err != nil {
		logger.Error("failed to register connection", "conn", c.id, "error", err)
		stream.Close()
		return
	}
	l.conns = append(l.conns, c)
	l.stats.Accepted.Add(1)
	logger.Info("added new connection to queue", "conn", c.id, "remote_addr", c.remote, "live", len(l.conns))
}

// watch keeps the poller registration in line with the connection's phase.
func (l *Loop) watch(c *Connection) error {
	if c.fd < 0 {
		return nil
	}
	want := phaseInterest(c.phase)
	switch c.registered {
	case want:
		return nil
	case interestNone:
		if err := l.poller.add(c.fd, want); err != nil {
			return fmt.Errorf("register connection: %w", err)
		}
	default:
		if err := l.poller.modify(c.fd, want); err != nil {
			return fmt.Errorf("update connection interest: %w", err)
		}
	}
	c.registered = want
	return nil
}

func (l *Loop) fail(i int, c *Connection, err error) {
	logger.Error("failed to handle connection", "conn", c.id, "phase", c.phase, "error", err)
	l.stats.Failed.Add(1)
	l.completed = append(l.completed, i)
}

func (l *Loop) release(c *Connection) {
	if c.registered != interestNone {
		if err := l.poller.remove(c.fd); err != nil {
			logger.Debug("failed to unregister connection", "conn", c.id, "error", err)
		}
		c.registered = interestNone
	}
	if err := c.stream.Close(); err != nil {
		logger.Debug("failed to close connection", "conn", c.id, "error", err)
	}
}

func (l *Loop) shutdown() {
	for _, c := range l.conns {
		l.release(c)
	}
	l.conns = nil
	l.stats.Live.Store(0)

	if err := l.listener.Close(); err != nil {
		logger.Warn("failed to close listener", "error", err)
	}
	if err := l.poller.close(); err != nil {
		logger.Warn("failed to close poller", "error", err)
	}
	logger.Info("event loop stopped")
}
