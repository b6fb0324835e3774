package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
)

// ErrRequestTooLarge is returned when the request buffer fills up before the
// terminator arrives.
var ErrRequestTooLarge = errors.New("request exceeds buffer capacity without terminator")

// Handler serves one connection with plain blocking I/O. It is used by the
// blocking and threaded server modes.
type Handler struct {
	ChunkSize int
}

// HandleConnection implements core.ConnectionHandler.
// It takes full ownership of the connection lifecycle.
func (h *Handler) HandleConnection(conn net.Conn) {
	defer conn.Close()

	if err := h.serve(conn); err != nil {
		logger.Error("failed to handle connection", "remote_addr", conn.RemoteAddr(), "error", err)
	}
}

func (h *Handler) serve(conn net.Conn) error {
	chunk := h.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	// 1. Read request
	var request [RequestCapacity]byte
	read := 0
	logger.Info("reading from connection", "remote_addr", conn.RemoteAddr())
	for {
		if read == RequestCapacity {
			return ErrRequestTooLarge
		}

		n, err := conn.Read(request[read:min(read+chunk, RequestCapacity)])
		prev := read
		read += n
		if n > 0 && TerminatorWithin(request[:], prev, read) {
			break
		}
		if n == 0 || errors.Is(err, io.EOF) {
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read request: %w", err)
			}
			logger.Error("client disconnected unexpectedly while reading request", "remote_addr", conn.RemoteAddr())
			return nil
		}
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
	}
	logger.Debug("finished reading request", "remote_addr", conn.RemoteAddr(), "request", string(request[:read]))

	// 2. Write response
	resp := Response()
	written := 0
	logger.Info("writing to connection", "remote_addr", conn.RemoteAddr())
	for written < len(resp) {
		n, err := conn.Write(resp[written:min(written+chunk, len(resp))])
		written += n
		if err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if n == 0 {
			logger.Error("client disconnected unexpectedly while writing response", "remote_addr", conn.RemoteAddr())
			return nil
		}
		logger.Debug("wrote response bytes", "bytes", n, "written", written, "total", len(resp))
	}

	return nil
}
