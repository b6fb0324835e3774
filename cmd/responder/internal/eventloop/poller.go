package eventloop

import "time"

// interest is the readiness a registered socket is waiting for.
type interest uint8

const (
	interestNone interest = iota
	interestRead
	interestWrite
)

func phaseInterest(p Phase) interest {
	if p == PhaseReading {
		return interestRead
	}
	return interestWrite
}

// poller lets an idle loop sleep until a socket may be ready. It only
// shortens idle spins; correctness never depends on a wakeup.
type poller interface {
	add(fd int, in interest) error
	modify(fd int, in interest) error
	remove(fd int) error
	wait(timeout time.Duration) error
	close() error
}

// nopPoller is used when idle waiting is disabled and the loop busy-polls.
type nopPoller struct{}

func (nopPoller) add(int, interest) error    { return nil }
func (nopPoller) modify(int, interest) error { return nil }
func (nopPoller) remove(int) error           { return nil }
func (nopPoller) wait(time.Duration) error   { return nil }
func (nopPoller) close() error               { return nil }
