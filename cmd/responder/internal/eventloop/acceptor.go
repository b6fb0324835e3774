package eventloop

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
)

// setNonblock is swapped in tests to fail the switch of an accepted socket.
var setNonblock = unix.SetNonblock

// Acceptor owns a listening TCP socket in non-blocking mode.
type Acceptor struct {
	fd   int
	addr net.Addr
}

// Listen binds a non-blocking listening socket on address ("host:port").
func Listen(address string, backlog int) (*Acceptor, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", address, err)
	}

	domain, sa := tcpSockaddr(tcpAddr)
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := setupListener(fd, sa, backlog); err != nil {
		unix.Close(fd)
		return nil, err
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}

	return &Acceptor{fd: fd, addr: sockaddrToTCP(bound)}, nil
}

func setupListener(fd int, sa unix.Sockaddr, backlog int) error {
	// Allow quick restarts on the same port
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set listener non-blocking: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// TryAccept returns the next pending connection, already switched to
// non-blocking mode. It returns ErrWouldBlock when nothing is pending or when
// the pending connection had to be dropped. Any other error means the
// listening socket is unusable.
func (a *Acceptor) TryAccept() (Stream, error) {
	nfd, peer, err := unix.Accept(a.fd)
	if err != nil {
		return nil, acceptError(err)
	}
	unix.CloseOnExec(nfd)
	remote := sockaddrToTCP(peer)

	// The listener is fine, only this connection is lost.
	if err := setNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		logger.Error("failed to set accepted connection non-blocking", "remote_addr", remote, "error", err)
		return nil, ErrWouldBlock
	}

	return &socket{fd: nfd, remote: remote}, nil
}

// acceptError maps an accept(2) failure. A peer that resets before we get to
// it only loses its own connection.
func acceptError(err error) error {
	if isWouldBlock(err) || errors.Is(err, unix.ECONNABORTED) {
		return ErrWouldBlock
	}
	return fmt.Errorf("accept: %w", err)
}

// Addr returns the bound address, with the real port when listening on :0.
func (a *Acceptor) Addr() net.Addr {
	return a.addr
}

func (a *Acceptor) Fd() int {
	return a.fd
}

func (a *Acceptor) Close() error {
	return unix.Close(a.fd)
}

func tcpSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || len(addr.IP) == 0 {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa
}
