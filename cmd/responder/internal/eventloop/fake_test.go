package eventloop

import (
	"bytes"
	"net"
)

// fakeStream replays a scripted sequence of reads. A nil entry in reads is a
// single would-block; once reads run out the stream either reports EOF or
// keeps blocking.
type fakeStream struct {
	name  string
	trace *[]string

	reads   [][]byte
	eof     bool
	readErr error

	writeBlocks int
	writeZero   bool
	writeErr    error
	flushBlocks int
	flushErr    error

	written   bytes.Buffer
	readCalls int
	maxRead   int
	maxWrite  int
	closed    bool
}

func (f *fakeStream) record() {
	if f.trace != nil {
		*f.trace = append(*f.trace, f.name)
	}
}

func (f *fakeStream) Read(p []byte) (int, error) {
	f.record()
	f.readCalls++
	f.maxRead = max(f.maxRead, len(p))

	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.reads) == 0 {
		if f.eof {
			return 0, nil
		}
		return 0, ErrWouldBlock
	}

	head := f.reads[0]
	if head == nil {
		f.reads = f.reads[1:]
		return 0, ErrWouldBlock
	}
	n := copy(p, head)
	if n == len(head) {
		f.reads = f.reads[1:]
	} else {
		f.reads[0] = head[n:]
	}
	return n, nil
}

func (f *fakeStream) Write(p []byte) (int, error) {
	f.record()
	f.maxWrite = max(f.maxWrite, len(p))

	switch {
	case f.writeErr != nil:
		return 0, f.writeErr
	case f.writeBlocks > 0:
		f.writeBlocks--
		return 0, ErrWouldBlock
	case f.writeZero:
		return 0, nil
	}
	return f.written.Write(p)
}

func (f *fakeStream) Flush() error {
	f.record()
	if f.flushErr != nil {
		return f.flushErr
	}
	if f.flushBlocks > 0 {
		f.flushBlocks--
		return ErrWouldBlock
	}
	return nil
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

// byteChunks splits s into one read entry per byte.
func byteChunks(s string) [][]byte {
	chunks := make([][]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		chunks = append(chunks, []byte{s[i]})
	}
	return chunks
}

type fakeListener struct {
	pending []Stream
	err     error
	closed  bool
}

func (l *fakeListener) TryAccept() (Stream, error) {
	if l.err != nil {
		return nil, l.err
	}
	if len(l.pending) == 0 {
		return nil, ErrWouldBlock
	}
	s := l.pending[0]
	l.pending = l.pending[1:]
	return s, nil
}

func (l *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}
