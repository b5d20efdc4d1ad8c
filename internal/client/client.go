// Package client implements the per-connection protocol state machine
// (§4.C): AwaitingUsername, InLobby, and InRoom, and the transitions
// between them.
package client

import (
	"errors"
	"net"

	"chatd/internal/metrics"
	"chatd/internal/room"
	"chatd/internal/wire"

	"github.com/rs/zerolog"
)

// State is one of the three protocol states a client can occupy.
type State int32

const (
	AwaitingUsername State = iota
	InLobby
	InRoom
)

func (s State) String() string {
	switch s {
	case AwaitingUsername:
		return "awaiting_username"
	case InLobby:
		return "in_lobby"
	case InRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

// Client owns a single accepted TCP connection and runs its protocol state
// machine on the goroutine that calls Serve. All registry calls the client
// makes are safe to call concurrently from other clients' goroutines.
type Client struct {
	conn     net.Conn
	registry *room.Registry
	logger   zerolog.Logger

	username  string
	state     State
	roomIndex int
	reader    wire.FrameReader
}

// New constructs a client bound to conn, starting in AwaitingUsername.
func New(conn net.Conn, registry *room.Registry, logger zerolog.Logger) *Client {
	return &Client{
		conn:      conn,
		registry:  registry,
		logger:    logger,
		state:     AwaitingUsername,
		roomIndex: -1,
	}
}

// room.Member implementation.

func (c *Client) Username() string { return c.username }
func (c *Client) RoomIndex() int    { return c.roomIndex }

func (c *Client) EnterRoom(index int) {
	c.roomIndex = index
	c.state = InRoom
}

func (c *Client) ExitRoom() {
	c.roomIndex = -1
	c.state = InLobby
}

// Deliver sends a frame to the client, logging (but not propagating) any
// write failure — the read loop's own error handling is what tears the
// connection down.
func (c *Client) Deliver(cmd wire.Command, content string) {
	if err := wire.SendFrame(c.conn, cmd, content); err != nil {
		c.logger.Debug().Err(err).Str("username", c.username).Msg("failed to deliver frame")
	}
}

// Serve runs the client's read loop until the connection closes, the peer
// sends Exit, or the inbound buffer overflows. It always cleans up room
// membership and closes the connection before returning.
func (c *Client) Serve() {
	c.Deliver(wire.CmdWelcomeRequest, "Welcome! Please enter a username:\n")

	buf := make([]byte, wire.MaxInboundFrameLen)
	for {
		n, readErr := c.conn.Read(buf)
		if n > 0 {
			frames, feedErr := c.reader.Feed(buf[:n])
			closed := false
			for _, f := range frames {
				if c.handleFrame(f) {
					closed = true
					break
				}
			}
			if closed {
				break
			}
			if feedErr != nil {
				c.logger.Debug().Str("username", c.username).Msg("inbound frame overflow, disconnecting")
				break
			}
		}
		if readErr != nil {
			break
		}
	}

	c.disconnect()
}

// handleFrame validates and dispatches a single complete frame, returning
// true if the connection should now be closed (Exit received).
func (c *Client) handleFrame(frame []byte) (shouldClose bool) {
	cmd, content, err := wire.Validate(frame)
	if err != nil {
		var verr *wire.ValidationError
		if errors.As(err, &verr) {
			metrics.IncProtocolErrors(kindLabel(verr.Kind))
			c.Deliver(verr.ResponseCommand(), verr.Reason)
		}
		return false
	}

	if cmd == wire.CmdExit {
		return true
	}

	if !c.commandAllowed(cmd) {
		metrics.IncProtocolErrors("invalid_state")
		c.Deliver(wire.ErrProtocolInvalidStateCmd, "Command not valid for the current state\n")
		return false
	}

	metrics.IncMessagesReceived()
	switch c.state {
	case AwaitingUsername:
		c.handleUsernameSubmit(string(content))
	case InLobby:
		c.handleLobbyCommand(cmd, string(content))
	case InRoom:
		c.handleRoomCommand(cmd, string(content))
	}
	return false
}

// commandAllowed checks the per-state whitelist from §4.C's transition
// table. CmdExit is handled before this check and is always permitted.
func (c *Client) commandAllowed(cmd wire.Command) bool {
	switch c.state {
	case AwaitingUsername:
		return cmd == wire.CmdUsernameSubmit
	case InLobby:
		return cmd == wire.CmdRoomCreateRequest || cmd == wire.CmdRoomJoinRequest || cmd == wire.CmdRoomListRequest
	case InRoom:
		return cmd == wire.CmdRoomMessageSend || cmd == wire.CmdLeaveRoom
	default:
		return false
	}
}

func (c *Client) handleUsernameSubmit(content string) {
	if len(content) > wire.MaxUsernameLen {
		c.Deliver(wire.ErrUsernameLength, "Username too long, must be 31 characters or fewer\n")
		return
	}
	c.username = content
	c.state = InLobby
	c.registry.List(c)
}

func (c *Client) handleLobbyCommand(cmd wire.Command, content string) {
	switch cmd {
	case wire.CmdRoomCreateRequest:
		c.registry.Create(c, content)
	case wire.CmdRoomJoinRequest:
		c.registry.Join(c, content)
	case wire.CmdRoomListRequest:
		c.registry.List(c)
	}
}

func (c *Client) handleRoomCommand(cmd wire.Command, content string) {
	switch cmd {
	case wire.CmdRoomMessageSend:
		c.registry.Broadcast(c, c.roomIndex, content)
	case wire.CmdLeaveRoom:
		c.registry.Leave(c)
		c.Deliver(wire.CmdRoomLeaveOk, "You have left the room\n")
	}
}

func (c *Client) disconnect() {
	if c.state == InRoom {
		c.registry.Leave(c)
	}
	c.conn.Close()
}

func kindLabel(k wire.ErrorKind) string {
	if k == wire.KindEmptyContent {
		return "empty_content"
	}
	return "invalid_format"
}
