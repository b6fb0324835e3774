package eventloop

import (
	"errors"
	"fmt"
	"time"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/protocol"
)

// Phase is the stage a connection's state machine is in. A connection that
// is done is no longer held by the loop, so there is no Done phase.
type Phase int

const (
	PhaseReading Phase = iota
	PhaseWriting
	PhaseFlushing
)

func (p Phase) String() string {
	switch p {
	case PhaseReading:
		return "reading"
	case PhaseWriting:
		return "writing"
	case PhaseFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Outcome is the result of advancing a connection once.
type Outcome int

const (
	// Pending means the connection stays in the loop.
	Pending Outcome = iota
	// Finished means the connection is done, either served or dropped
	// because the peer went away.
	Finished
	// Failed means an I/O error ended the connection.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Connection is one accepted socket and the state of its request/response
// exchange.
type Connection struct {
	id     uint64
	stream Stream
	remote string
	chunk  int
	phase  Phase

	// PhaseReading
	request [protocol.RequestCapacity]byte
	read    int

	// PhaseWriting
	response []byte
	written  int

	// blocked is set when the last advance stopped on ErrWouldBlock.
	blocked    bool
	lastActive time.Time

	// fd and registered are bookkeeping for the readiness poller.
	fd         int
	registered interest
}

func newConnection(id uint64, stream Stream, chunk int, now time.Time) *Connection {
	if chunk <= 0 {
		chunk = protocol.DefaultChunkSize
	}
	c := &Connection{
		id:         id,
		stream:     stream,
		chunk:      chunk,
		phase:      PhaseReading,
		lastActive: now,
		fd:         -1,
	}
	if ra, ok := stream.(remoteAddresser); ok && ra.RemoteAddr() != nil {
		c.remote = ra.RemoteAddr().String()
	}
	if f, ok := stream.(fileDescriptor); ok {
		c.fd = f.Fd()
	}
	return c
}

// Phase returns the current phase.
func (c *Connection) Phase() Phase {
	return c.phase
}

// advance moves the connection forward by at most one bounded read, write or
// flush per phase. A completed phase falls through to the next one within
// the same call. A non-nil error is only returned together with Failed.
func (c *Connection) advance(now time.Time) (Outcome, error) {
	c.blocked = false

	if c.phase == PhaseReading {
		if s, done := c.readRequest(now); done {
			return s.result()
		}
	}
	if c.phase == PhaseWriting {
		if s, done := c.writeResponse(now); done {
			return s.result()
		}
	}
	if c.phase == PhaseFlushing {
		return c.flush().result()
	}
	return Pending, nil
}

// step carries the result of one phase handler.
type step struct {
	outcome Outcome
	err     error
}

func (s step) result() (Outcome, error) {
	return s.outcome, s.err
}

var pending = step{outcome: Pending}

func (c *Connection) readRequest(now time.Time) (step, bool) {
	if c.read == len(c.request) {
		return step{Failed, protocol.ErrRequestTooLarge}, true
	}

	n, err := c.stream.Read(c.request[c.read:min(c.read+c.chunk, len(c.request))])
	switch {
	case errors.Is(err, ErrWouldBlock):
		logger.Debug("would block during read", "conn", c.id)
		c.blocked = true
		return pending, true
	case err != nil:
		return step{Failed, fmt.Errorf("read request: %w", err)}, true
	case n == 0:
		logger.Error("client disconnected unexpectedly while reading request", "conn", c.id, "remote_addr", c.remote)
		return step{outcome: Finished}, true
	}

	prev := c.read
	c.read += n
	c.lastActive = now

	if !protocol.TerminatorWithin(c.request[:], prev, c.read) {
		if c.read == len(c.request) {
			return step{Failed, protocol.ErrRequestTooLarge}, true
		}
		return pending, true
	}

	logger.Info("finished reading request", "conn", c.id, "request", string(c.request[:c.read]))
	c.phase = PhaseWriting
	c.response = protocol.Response()
	c.written = 0
	return pending, false
}

func (c *Connection) writeResponse(now time.Time) (step, bool) {
	n, err := c.stream.Write(c.response[c.written:min(c.written+c.chunk, len(c.response))])
	switch {
	case errors.Is(err, ErrWouldBlock):
		logger.Debug("would block during write", "conn", c.id)
		c.blocked = true
		return pending, true
	case err != nil:
		return step{Failed, fmt.Errorf("write response: %w", err)}, true
	case n == 0:
		logger.Error("client disconnected unexpectedly while writing response", "conn", c.id, "remote_addr", c.remote)
		return step{outcome: Finished}, true
	}

	c.written += n
	c.lastActive = now
	logger.Debug("wrote response bytes", "conn", c.id, "bytes", n, "written", c.written, "total", len(c.response))

	if c.written < len(c.response) {
		return pending, true
	}
	c.phase = PhaseFlushing
	return pending, false
}

func (c *Connection) flush() step {
	err := c.stream.Flush()
	switch {
	case errors.Is(err, ErrWouldBlock):
		logger.Debug("would block during flush", "conn", c.id)
		c.blocked = true
		return pending
	case err != nil:
		return step{Failed, fmt.Errorf("flush response: %w", err)}
	}
	return step{outcome: Finished}
}

func (c *Connection) idleFor(now time.Time) time.Duration {
	return now.Sub(c.lastActive)
}
