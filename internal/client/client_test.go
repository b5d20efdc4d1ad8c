package client

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"chatd/internal/room"
	"chatd/internal/wire"

	"github.com/rs/zerolog"
)

// harness wires a Client to one end of an in-memory pipe and exposes the
// other end for reading server frames and writing client frames.
type harness struct {
	t      *testing.T
	client *Client
	peer   net.Conn
	reader *bufio.Reader
	done   chan struct{}
}

func newHarness(t *testing.T, registry *room.Registry) *harness {
	t.Helper()
	serverConn, peerConn := net.Pipe()
	c := New(serverConn, registry, zerolog.Nop())
	h := &harness{t: t, client: c, peer: peerConn, reader: bufio.NewReader(peerConn), done: make(chan struct{})}
	go func() {
		c.Serve()
		close(h.done)
	}()
	return h
}

func (h *harness) send(cmd wire.Command, content string) {
	h.t.Helper()
	if _, err := h.peer.Write(wire.Frame(cmd, content)); err != nil {
		h.t.Fatalf("write: %v", err)
	}
}

func (h *harness) expect(wantCmd wire.Command) string {
	h.t.Helper()
	h.peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := h.reader.ReadString('\n')
	// Content may itself contain LF, so read until the CRLF terminator.
	for err == nil && !strings.HasSuffix(line, "\r\n") {
		var more string
		more, err = h.reader.ReadString('\n')
		line += more
	}
	if err != nil {
		h.t.Fatalf("read: %v", err)
	}
	if len(line) < 4 || wire.Command(line[0]) != wantCmd {
		h.t.Fatalf("got frame %q, want command %v", line, wantCmd)
	}
	return line[2 : len(line)-2]
}

func (h *harness) closePeer() {
	h.peer.Close()
}

func (h *harness) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("client Serve did not return")
	}
}

func TestUsernameSubmitTransitionsToLobby(t *testing.T) {
	reg := room.NewRegistry(4, 4)
	h := newHarness(t, reg)
	defer h.closePeer()

	h.expect(wire.CmdWelcomeRequest)
	h.send(wire.CmdUsernameSubmit, "alice")
	h.expect(wire.CmdRoomListResponse)

	if h.client.state != InLobby {
		t.Errorf("state = %v, want InLobby", h.client.state)
	}
	if h.client.Username() != "alice" {
		t.Errorf("Username() = %q, want alice", h.client.Username())
	}
}

func TestUsernameTooLongRejected(t *testing.T) {
	reg := room.NewRegistry(4, 4)
	h := newHarness(t, reg)
	defer h.closePeer()

	h.expect(wire.CmdWelcomeRequest)
	h.send(wire.CmdUsernameSubmit, "this-username-is-way-too-long-to-be-valid")
	h.expect(wire.ErrUsernameLength)

	if h.client.state != AwaitingUsername {
		t.Errorf("state = %v, want AwaitingUsername after rejection", h.client.state)
	}
}

func TestCommandInvalidForStateRejected(t *testing.T) {
	reg := room.NewRegistry(4, 4)
	h := newHarness(t, reg)
	defer h.closePeer()

	h.expect(wire.CmdWelcomeRequest)
	h.send(wire.CmdRoomListRequest, "x") // not valid while AwaitingUsername
	h.expect(wire.ErrProtocolInvalidStateCmd)

	if h.client.state != AwaitingUsername {
		t.Errorf("state = %v, want AwaitingUsername", h.client.state)
	}
}

func TestCreateAndLeaveRoom(t *testing.T) {
	reg := room.NewRegistry(4, 4)
	h := newHarness(t, reg)
	defer h.closePeer()

	h.expect(wire.CmdWelcomeRequest)
	h.send(wire.CmdUsernameSubmit, "alice")
	h.expect(wire.CmdRoomListResponse)

	h.send(wire.CmdRoomCreateRequest, "general")
	h.expect(wire.CmdRoomCreateOk)
	if h.client.state != InRoom {
		t.Fatalf("state = %v, want InRoom", h.client.state)
	}

	h.send(wire.CmdLeaveRoom, "-")
	h.expect(wire.CmdRoomLeaveOk)
	if h.client.state != InLobby {
		t.Fatalf("state = %v, want InLobby after leave", h.client.state)
	}
}

func TestExitClosesConnection(t *testing.T) {
	reg := room.NewRegistry(4, 4)
	h := newHarness(t, reg)

	h.expect(wire.CmdWelcomeRequest)
	h.send(wire.CmdExit, "-")
	h.waitDone(t)
	h.peer.Close()
}
