package eventloop

import (
	"net"

	"golang.org/x/sys/unix"
)

// Stream is the per-connection transport driven by the state machine.
// Implementations must never block: an operation that cannot make progress
// returns ErrWouldBlock. A zero-byte Read or Write with a nil error means the
// peer went away.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// fileDescriptor is implemented by streams and listeners backed by an OS
// socket, so they can be registered with the readiness poller.
type fileDescriptor interface {
	Fd() int
}

type remoteAddresser interface {
	RemoteAddr() net.Addr
}

// socket is a non-blocking TCP connection on a raw file descriptor.
type socket struct {
	fd     int
	remote net.Addr
}

func (s *socket) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	if err != nil {
		if isWouldBlock(err) {
			return 0, ErrWouldBlock
		}
		return 0, &net.OpError{Op: "read", Net: "tcp", Addr: s.remote, Err: err}
	}
	return n, nil
}

func (s *socket) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if err != nil {
		if isWouldBlock(err) {
			return 0, ErrWouldBlock
		}
		return 0, &net.OpError{Op: "write", Net: "tcp", Addr: s.remote, Err: err}
	}
	return n, nil
}

// Flush has nothing to do: bytes accepted by write(2) already sit in the
// kernel send queue.
func (s *socket) Flush() error {
	return nil
}

func (s *socket) Close() error {
	return unix.Close(s.fd)
}

func (s *socket) Fd() int {
	return s.fd
}

func (s *socket) RemoteAddr() net.Addr {
	return s.remote
}

func sockaddrToTCP(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	}
	return nil
}
