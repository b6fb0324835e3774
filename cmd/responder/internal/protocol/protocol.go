package protocol

const (
	// RequestCapacity is the fixed size of a connection's request buffer.
	RequestCapacity = 1024

	// DefaultChunkSize caps how many bytes a single read or write may move.
	// Keeping it small forces partial I/O on every request.
	DefaultChunkSize = 5
)

// Terminator marks the end of a request.
var Terminator = [4]byte{'\r', '\n', '\r', '\n'}

// response is served verbatim to every client that sends a complete request.
// The mixed line endings in the header block are part of the wire contract
// and must not be normalised.
const response = "HTTP/1.1 200 OK\r\n" +
	"Content-Length: 12\n" +
	"Connection: close\r\n\r\n" +
	"Hello world!"

// Response returns the canned response bytes. Callers must not modify them.
func Response() []byte {
	return cannedResponse
}

var cannedResponse = []byte(response)

// HasTerminator reports whether buf[:n] ends with the request terminator.
func HasTerminator(buf []byte, n int) bool {
	if n < len(Terminator) || n > len(buf) {
		return false
	}
	return buf[n-4] == Terminator[0] &&
		buf[n-3] == Terminator[1] &&
		buf[n-2] == Terminator[2] &&
		buf[n-1] == Terminator[3]
}

// TerminatorWithin reports whether the terminator ends anywhere in
// (from, n]. Bytes before from have already been checked by the caller, so
// only the positions touched by the latest read are scanned.
func TerminatorWithin(buf []byte, from, n int) bool {
	if from < 0 {
		from = 0
	}
	for end := n; end > from; end-- {
		if HasTerminator(buf, end) {
			return true
		}
	}
	return false
}
