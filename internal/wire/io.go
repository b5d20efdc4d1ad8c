package wire

import (
	"errors"
	"net"
	"time"
)

// ErrFrameOverflow is returned by FrameReader.Feed when the unterminated
// residual exceeds MaxInboundFrameLen, per §5/§9: a client that never
// completes a frame within the size bound is disconnected rather than
// allowed to grow the buffer without limit.
var ErrFrameOverflow = errors.New("wire: inbound frame exceeds maximum size")

const writeDeadline = 5 * time.Second

// SendFrame writes a complete encoded frame to conn, retrying on partial
// writes until the whole frame lands or a permanent error occurs. Mirrors
// the retry-on-partial-write send loop used throughout the protocol's
// reference implementation.
func SendFrame(conn net.Conn, cmd Command, content string) error {
	frame := Frame(cmd, content)
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	defer conn.SetWriteDeadline(time.Time{})

	written := 0
	for written < len(frame) {
		n, err := conn.Write(frame[written:])
		written += n
		if err != nil {
			return err
		}
	}
	return nil
}

// FrameReader accumulates raw bytes read off a connection and yields
// complete CRLF-terminated frames as they become available, bounding the
// unterminated residual to MaxInboundFrameLen.
type FrameReader struct {
	buf []byte
}

// Feed appends chunk to the reader's internal buffer and returns every
// complete frame it can now extract. If the unconsumed residual exceeds
// MaxInboundFrameLen, the buffer is discarded and ErrFrameOverflow is
// returned alongside any frames already extracted.
func (r *FrameReader) Feed(chunk []byte) (frames [][]byte, err error) {
	r.buf = append(r.buf, chunk...)
	frames, residual := Split(r.buf)

	// Split's frames alias r.buf; copy them out before r.buf is reassigned
	// or truncated so callers can hold onto them past the next Feed call.
	owned := make([][]byte, len(frames))
	for i, f := range frames {
		owned[i] = append([]byte(nil), f...)
	}

	if len(residual) > MaxInboundFrameLen {
		r.buf = nil
		return owned, ErrFrameOverflow
	}
	r.buf = append([]byte(nil), residual...)
	return owned, nil
}
