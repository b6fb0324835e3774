package eventloop

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock reports that a non-blocking operation could not make
	// progress right now. It is retried on the next loop iteration and never
	// escapes the loop.
	ErrWouldBlock = errors.New("operation would block")

	// ErrIdleTimeout is the failure recorded for connections reaped by the
	// idle timeout.
	ErrIdleTimeout = errors.New("connection idle timeout")
)

// isWouldBlock maps the transient errno values of non-blocking syscalls.
// EINTR is retried on the next iteration like EAGAIN.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR)
}
