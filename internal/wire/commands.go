// Package wire implements the chat server's ASCII line protocol: command
// byte, single space, content, CRLF terminator.
package wire

// Command is a single protocol command byte. Client and server commands
// share the byte space but never overlap in practice, since a frame's
// direction is always known from context (inbound vs outbound).
type Command byte

// Client-to-server commands (§6).
const (
	CmdExit              Command = 0x01
	CmdUsernameSubmit    Command = 0x02
	CmdRoomCreateRequest Command = 0x03
	CmdRoomListRequest   Command = 0x04
	CmdRoomJoinRequest   Command = 0x05
	CmdLeaveRoom         Command = 0x06
	CmdRoomMessageSend   Command = 0x07
)

// Server-to-client commands (§6).
const (
	CmdWelcomeRequest    Command = 0x16
	CmdRoomNotifyJoined  Command = 0x17 // defined for protocol completeness; never emitted, see DESIGN.md
	CmdRoomCreateOk      Command = 0x18
	CmdRoomListResponse  Command = 0x1A
	CmdRoomJoinOk        Command = 0x1B
	CmdRoomMsg           Command = 0x1C
	CmdRoomLeaveOk       Command = 0x1D
)

// Server-to-client error commands (§6, §7).
const (
	ErrRoomNameInvalid         Command = 0x24
	ErrRoomCapacityFull        Command = 0x25
	ErrRoomNotFound            Command = 0x26
	ErrProtocolInvalidStateCmd Command = 0x28
	ErrProtocolInvalidFormat   Command = 0x29
	ErrEmptyContent            Command = 0x2A
	ErrServerFull              Command = 0x2B
	ErrConnecting              Command = 0x2C
	ErrUsernameLength          Command = 0x2D
)

// Wire size limits (§6).
const (
	MaxUsernameLen     = 31
	MaxRoomNameLen     = 24
	MaxContentLen      = 128
	MaxInboundFrameLen = 132
)

func isClientCommand(c Command) bool {
	switch c {
	case CmdExit, CmdUsernameSubmit, CmdRoomCreateRequest, CmdRoomListRequest,
		CmdRoomJoinRequest, CmdLeaveRoom, CmdRoomMessageSend:
		return true
	}
	return false
}
