//go:build !linux

package eventloop

import "time"

// sleepPoller bounds idle spins with a plain sleep where epoll is missing.
type sleepPoller struct{}

func newPoller() (poller, error) {
	return sleepPoller{}, nil
}

func (sleepPoller) add(int, interest) error    { return nil }
func (sleepPoller) modify(int, interest) error { return nil }
func (sleepPoller) remove(int) error           { return nil }
func (sleepPoller) close() error               { return nil }

func (sleepPoller) wait(timeout time.Duration) error {
	time.Sleep(timeout)
	return nil
}
