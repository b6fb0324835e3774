package eventloop

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/protocol"
)

var loopModes = []struct {
	name string
	opts Options
}{
	{"idle wait", Options{ChunkSize: protocol.DefaultChunkSize, IdleWait: 10 * time.Millisecond}},
	{"busy poll", Options{ChunkSize: protocol.DefaultChunkSize}},
}

// startLoop runs a loop on a loopback port and stops it on cleanup.
func startLoop(t *testing.T, opts Options) (string, *Loop) {
	t.Helper()

	a, err := Listen("127.0.0.1:0", 128)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	l, err := New(a, opts)
	if err != nil {
		a.Close()
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})

	return a.Addr().String(), l
}

// roundTrip sends the request using the given write sizes and returns the
// full response.
func roundTrip(addr string, writes []string, pause time.Duration) ([]byte, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	for _, w := range writes {
		if _, err := conn.Write([]byte(w)); err != nil {
			return nil, fmt.Errorf("write: %w", err)
		}
		if pause > 0 {
			time.Sleep(pause)
		}
	}
	return io.ReadAll(conn)
}

func splitBytes(s string) []string {
	parts := make([]string, len(s))
	for i := range s {
		parts[i] = s[i : i+1]
	}
	return parts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoopE2E_SingleWrite(t *testing.T) {
	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			addr, _ := startLoop(t, mode.opts)

			got, err := roundTrip(addr, []string{request}, 0)
			if err != nil {
				t.Fatalf("round trip: %v", err)
			}
			if !bytes.Equal(got, protocol.Response()) {
				t.Errorf("response = %q, want %q", got, protocol.Response())
			}
		})
	}
}

func TestLoopE2E_OneByteWrites(t *testing.T) {
	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			addr, _ := startLoop(t, mode.opts)

			got, err := roundTrip(addr, splitBytes(request), 2*time.Millisecond)
			if err != nil {
				t.Fatalf("round trip: %v", err)
			}
			if !bytes.Equal(got, protocol.Response()) {
				t.Errorf("response = %q, want %q", got, protocol.Response())
			}
		})
	}
}

func TestLoopE2E_EarlyDisconnect(t *testing.T) {
	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			addr, l := startLoop(t, mode.opts)
			stats := l.Stats()

			conn, err := net.Dial("tcp", addr)
			if err != nil {
				t.Fatalf("Dial: %v", err)
			}
			if _, err := conn.Write([]byte("GET")); err != nil {
				t.Fatalf("write: %v", err)
			}
			waitFor(t, "accept", func() bool { return stats.Accepted.Load() == 1 })
			conn.Close()

			waitFor(t, "removal", func() bool {
				return stats.Live.Load() == 0 && stats.Finished.Load() == 1
			})

			// The loop keeps serving afterwards
			got, err := roundTrip(addr, []string{request}, 0)
			if err != nil {
				t.Fatalf("round trip: %v", err)
			}
			if !bytes.Equal(got, protocol.Response()) {
				t.Errorf("response = %q, want %q", got, protocol.Response())
			}
		})
	}
}

func TestLoopE2E_ConcurrentClients(t *testing.T) {
	const clients = 50

	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			addr, l := startLoop(t, mode.opts)

			var wg sync.WaitGroup
			errs := make(chan error, clients)
			for i := 0; i < clients; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					got, err := roundTrip(addr, []string{request}, 0)
					if err != nil {
						errs <- fmt.Errorf("client %d: %w", i, err)
						return
					}
					if !bytes.Equal(got, protocol.Response()) {
						errs <- fmt.Errorf("client %d: response = %q", i, got)
					}
				}(i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				t.Error(err)
			}

			stats := l.Stats()
			waitFor(t, "all connections to finish", func() bool {
				return stats.Finished.Load() == clients && stats.Live.Load() == 0
			})
			if got := stats.Failed.Load(); got != 0 {
				t.Errorf("failed = %d, want 0", got)
			}
		})
	}
}
