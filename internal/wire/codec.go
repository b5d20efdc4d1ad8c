package wire

import "bytes"

const crlf = "\r\n"

// ErrorKind distinguishes the two flavors of frame rejection the protocol
// recognizes (§7): a structurally malformed frame versus a well-formed
// frame whose content is empty after trimming leading spaces.
type ErrorKind int

const (
	KindInvalidFormat ErrorKind = iota
	KindEmptyContent
)

// ValidationError reports why a raw frame was rejected, along with the
// response command and human-readable body the caller should send back.
type ValidationError struct {
	Kind   ErrorKind
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ResponseCommand returns the command byte a server should reply with for
// this validation failure.
func (e *ValidationError) ResponseCommand() Command {
	if e.Kind == KindEmptyContent {
		return ErrEmptyContent
	}
	return ErrProtocolInvalidFormat
}

const invalidFormatHint = "Correct format: [command char][space][message content]\n"

// Frame encodes a command and its content into a complete outbound frame,
// including the trailing CRLF terminator.
func Frame(cmd Command, content string) []byte {
	buf := make([]byte, 0, len(content)+4)
	buf = append(buf, byte(cmd), ' ')
	buf = append(buf, content...)
	buf = append(buf, crlf...)
	return buf
}

// Split extracts every complete CRLF-terminated frame from buf and returns
// the unconsumed residual (a partial frame still awaiting its terminator).
// The returned frames alias buf's backing array and must be consumed before
// buf is reused.
func Split(buf []byte) (frames [][]byte, residual []byte) {
	for {
		idx := bytes.Index(buf, []byte(crlf))
		if idx == -1 {
			return frames, buf
		}
		frames = append(frames, buf[:idx])
		buf = buf[idx+len(crlf):]
	}
}

// Validate checks a single raw frame (without its CRLF terminator) against
// the format rules in §6/§7: minimum length, the command/space header, a
// recognized command byte, content no longer than MaxContentLen, and
// non-empty content after trimming leading spaces.
func Validate(frame []byte) (cmd Command, content []byte, err error) {
	if len(frame) < 3 {
		return 0, nil, &ValidationError{Kind: KindInvalidFormat,
			Reason: "Message too short.\n" + invalidFormatHint}
	}
	if frame[1] != ' ' {
		return 0, nil, &ValidationError{Kind: KindInvalidFormat,
			Reason: "Missing space after command.\n" + invalidFormatHint}
	}
	cmd = Command(frame[0])
	if !isClientCommand(cmd) {
		return 0, nil, &ValidationError{Kind: KindInvalidFormat,
			Reason: "Command not recognized.\n" + invalidFormatHint}
	}
	body := frame[2:]
	if len(body) > MaxContentLen {
		return 0, nil, &ValidationError{Kind: KindInvalidFormat,
			Reason: "Message content too long.\n" + invalidFormatHint}
	}
	trimmed := bytes.TrimLeft(body, " ")
	if len(trimmed) == 0 {
		return 0, nil, &ValidationError{Kind: KindEmptyContent,
			Reason: "Message content is empty.\n" + invalidFormatHint}
	}
	return cmd, body, nil
}
