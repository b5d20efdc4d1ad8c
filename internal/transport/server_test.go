package transport

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"chatd/internal/config"
	"chatd/internal/logging"
	"chatd/internal/wire"
)

// testClient is a minimal protocol-aware TCP client used to drive the
// scenarios from §8 end-to-end against a live Server.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(cmd wire.Command, content string) {
	c.t.Helper()
	if _, err := c.conn.Write(wire.Frame(cmd, content)); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) expect(wantCmd wire.Command) string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	// Content may itself contain LF, so read until the CRLF terminator.
	for err == nil && !strings.HasSuffix(line, "\r\n") {
		var more string
		more, err = c.r.ReadString('\n')
		line += more
	}
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	if len(line) < 4 || wire.Command(line[0]) != wantCmd {
		c.t.Fatalf("got frame %q, want command %v", line, wantCmd)
	}
	return line[2 : len(line)-2]
}

func (c *testClient) close() { c.conn.Close() }

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	cfg.AdmissionGuardEnabled = false
	logger := logging.New(logging.Options{Level: "error", Format: "json"})
	srv := New(cfg, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func defaultTestConfig() config.Config {
	return config.Config{
		MaxThreads:          2,
		MaxClientsPerThread: 8,
		MaxRooms:            4,
		MaxClientsPerRoom:   4,
		MetricsInterval:     50 * time.Millisecond,
	}
}

// S1: two clients create/join the same room and exchange a broadcast
// message.
func TestScenarioCreateJoinBroadcast(t *testing.T) {
	srv := newTestServer(t, defaultTestConfig())

	c1 := dial(t, srv.Addr())
	defer c1.close()
	c1.expect(wire.CmdWelcomeRequest)
	c1.send(wire.CmdUsernameSubmit, "alice")
	c1.expect(wire.CmdRoomListResponse)
	c1.send(wire.CmdRoomCreateRequest, "general")
	c1.expect(wire.CmdRoomCreateOk)

	c2 := dial(t, srv.Addr())
	defer c2.close()
	c2.expect(wire.CmdWelcomeRequest)
	c2.send(wire.CmdUsernameSubmit, "bob")
	c2.expect(wire.CmdRoomListResponse)
	c2.send(wire.CmdRoomJoinRequest, "0")
	c2.expect(wire.CmdRoomJoinOk)

	if got := c1.expect(wire.CmdRoomMsg); got != "bob has entered the room\n" {
		t.Errorf("c1 got %q", got)
	}

	c2.send(wire.CmdRoomMessageSend, "hello everyone")
	if got := c1.expect(wire.CmdRoomMsg); got != "bob: hello everyone" {
		t.Errorf("c1 got %q, want broadcast from bob", got)
	}
}

// S2: a member leaving a room is announced to the remaining members and
// the departed client returns to the lobby.
func TestScenarioLeaveRoomNotifiesRemaining(t *testing.T) {
	srv := newTestServer(t, defaultTestConfig())

	c1 := dial(t, srv.Addr())
	defer c1.close()
	c1.expect(wire.CmdWelcomeRequest)
	c1.send(wire.CmdUsernameSubmit, "alice")
	c1.expect(wire.CmdRoomListResponse)
	c1.send(wire.CmdRoomCreateRequest, "general")
	c1.expect(wire.CmdRoomCreateOk)

	c2 := dial(t, srv.Addr())
	defer c2.close()
	c2.expect(wire.CmdWelcomeRequest)
	c2.send(wire.CmdUsernameSubmit, "bob")
	c2.expect(wire.CmdRoomListResponse)
	c2.send(wire.CmdRoomJoinRequest, "0")
	c2.expect(wire.CmdRoomJoinOk)
	c1.expect(wire.CmdRoomMsg) // bob entered

	c2.send(wire.CmdLeaveRoom, "-")
	c2.expect(wire.CmdRoomLeaveOk)

	if got := c1.expect(wire.CmdRoomMsg); got != "bob left the room\n" {
		t.Errorf("c1 got %q, want departure notice", got)
	}
}

// S3: joining a nonexistent room is rejected with RoomNotFound.
func TestScenarioJoinNonexistentRoom(t *testing.T) {
	srv := newTestServer(t, defaultTestConfig())

	c := dial(t, srv.Addr())
	defer c.close()
	c.expect(wire.CmdWelcomeRequest)
	c.send(wire.CmdUsernameSubmit, "alice")
	c.expect(wire.CmdRoomListResponse)
	c.send(wire.CmdRoomJoinRequest, "3")
	c.expect(wire.ErrRoomNotFound)
}

// S4: a room at capacity rejects further joins with RoomCapacityFull.
func TestScenarioRoomCapacityFull(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxClientsPerRoom = 1
	srv := newTestServer(t, cfg)

	c1 := dial(t, srv.Addr())
	defer c1.close()
	c1.expect(wire.CmdWelcomeRequest)
	c1.send(wire.CmdUsernameSubmit, "alice")
	c1.expect(wire.CmdRoomListResponse)
	c1.send(wire.CmdRoomCreateRequest, "general")
	c1.expect(wire.CmdRoomCreateOk)

	c2 := dial(t, srv.Addr())
	defer c2.close()
	c2.expect(wire.CmdWelcomeRequest)
	c2.send(wire.CmdUsernameSubmit, "bob")
	c2.expect(wire.CmdRoomListResponse)
	c2.send(wire.CmdRoomJoinRequest, "0")
	c2.expect(wire.ErrRoomCapacityFull)
}

// S5: an oversized username is rejected and the client remains in
// AwaitingUsername, able to retry with a valid one.
func TestScenarioUsernameLengthRetry(t *testing.T) {
	srv := newTestServer(t, defaultTestConfig())

	c := dial(t, srv.Addr())
	defer c.close()
	c.expect(wire.CmdWelcomeRequest)
	c.send(wire.CmdUsernameSubmit, "way-too-long-a-username-for-this-protocol")
	c.expect(wire.ErrUsernameLength)
	c.send(wire.CmdUsernameSubmit, "alice")
	c.expect(wire.CmdRoomListResponse)
}

// S6: disconnecting a client mid-room frees its member slot in a full room
// for a later joiner.
func TestScenarioDisconnectFreesRoomSlot(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxClientsPerRoom = 2
	srv := newTestServer(t, cfg)

	c1 := dial(t, srv.Addr())
	c1.expect(wire.CmdWelcomeRequest)
	c1.send(wire.CmdUsernameSubmit, "alice")
	c1.expect(wire.CmdRoomListResponse)
	c1.send(wire.CmdRoomCreateRequest, "general")
	c1.expect(wire.CmdRoomCreateOk)

	// carol fills the room and stays, so it is still in use after alice
	// disconnects.
	c3 := dial(t, srv.Addr())
	defer c3.close()
	c3.expect(wire.CmdWelcomeRequest)
	c3.send(wire.CmdUsernameSubmit, "carol")
	c3.expect(wire.CmdRoomListResponse)
	c3.send(wire.CmdRoomJoinRequest, "0")
	c3.expect(wire.CmdRoomJoinOk)
	c1.close()

	// Give the server a moment to observe the closed connection and free
	// the room slot.
	time.Sleep(200 * time.Millisecond)

	c2 := dial(t, srv.Addr())
	defer c2.close()
	c2.expect(wire.CmdWelcomeRequest)
	c2.send(wire.CmdUsernameSubmit, "bob")
	c2.expect(wire.CmdRoomListResponse)
	c2.send(wire.CmdRoomJoinRequest, "0")
	c2.expect(wire.CmdRoomJoinOk)
}
