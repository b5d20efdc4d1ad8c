// Package room implements the fixed-capacity room registry (§4.B): room
// creation, joining, leaving, listing, and in-room broadcast.
package room

import (
	"strconv"
	"strings"
	"sync"

	"chatd/internal/metrics"
	"chatd/internal/wire"
)

// Member is the subset of client behavior the registry needs: delivering
// frames and tracking which room (if any) a client currently occupies.
// client.Client implements this; tests may supply a fake.
type Member interface {
	Username() string
	Deliver(cmd wire.Command, content string)
	RoomIndex() int
	EnterRoom(index int)
	ExitRoom()
}

type room struct {
	mu      sync.Mutex
	inUse   bool
	name    string
	members []Member // fixed length == maxMembers; nil entries are free slots
	count   int
}

// Registry is a fixed-size array of rooms, each independently locked, per
// §3/§4.B. Rooms are never allocated or freed dynamically; only their
// in-use flag and member slots change.
type Registry struct {
	rooms      []*room
	maxMembers int
}

// NewRegistry builds a registry with maxRooms fixed room slots, each able to
// hold up to maxMembersPerRoom members.
func NewRegistry(maxRooms, maxMembersPerRoom int) *Registry {
	rooms := make([]*room, maxRooms)
	for i := range rooms {
		rooms[i] = &room{members: make([]Member, maxMembersPerRoom)}
	}
	return &Registry{rooms: rooms, maxMembers: maxMembersPerRoom}
}

// RoomCount reports the fixed number of room slots in the registry.
func (r *Registry) RoomCount() int { return len(r.rooms) }

// ActiveCount returns the number of rooms currently in use, for metrics
// sampling.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, rm := range r.rooms {
		rm.mu.Lock()
		if rm.inUse {
			n++
		}
		rm.mu.Unlock()
	}
	return n
}

// Create scans the fixed room array for the first free slot and claims it
// for requester, per §4.B's scan-lock-first-free rule. Returns false if the
// name is invalid or no room slot is free.
func (r *Registry) Create(requester Member, name string) bool {
	if len(name) == 0 || len(name) > wire.MaxRoomNameLen {
		requester.Deliver(wire.ErrRoomNameInvalid, "Room creation failed: room name length invalid\n")
		return false
	}

	for i, rm := range r.rooms {
		rm.mu.Lock()
		if !rm.inUse {
			rm.inUse = true
			rm.name = name
			rm.count = 1
			rm.members[0] = requester
			requester.EnterRoom(i)
			rm.mu.Unlock()

			metrics.IncRoomsCreated()
			requester.Deliver(wire.CmdRoomCreateOk, "Room created successfully: "+name+"\n")
			return true
		}
		rm.mu.Unlock()
	}

	metrics.IncRoomCapacityRejections()
	requester.Deliver(wire.ErrRoomCapacityFull, "Room creation failed: maximum number of rooms reached\n")
	return false
}

// ParseRoomIndex parses a 1-2 digit decimal room index out of content,
// rejecting anything else (non-digits, more than two digits, or an index
// outside [0, maxRooms)), per §4.B/§6.
func ParseRoomIndex(content string, maxRooms int) (int, bool) {
	content = strings.TrimSpace(content)
	if len(content) == 0 || len(content) > 2 {
		return 0, false
	}
	for _, c := range content {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(content)
	if err != nil || n < 0 || n >= maxRooms {
		return 0, false
	}
	return n, true
}

// Join places requester into the room named by content (a decimal room
// index), broadcasting an entry notice to existing members on success.
func (r *Registry) Join(requester Member, content string) bool {
	index, ok := ParseRoomIndex(content, len(r.rooms))
	if !ok {
		requester.Deliver(wire.ErrRoomNotFound, "Room not found: invalid room number\n")
		return false
	}

	rm := r.rooms[index]
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.inUse {
		requester.Deliver(wire.ErrRoomNotFound, "Room not found\n")
		return false
	}
	if rm.count >= r.maxMembers {
		metrics.IncRoomCapacityRejections()
		requester.Deliver(wire.ErrRoomCapacityFull, "Cannot join room: room is full\n")
		return false
	}

	for i, m := range rm.members {
		if m == nil {
			rm.members[i] = requester
			rm.count++
			requester.EnterRoom(index)
			broadcastLocked(rm, requester, requester.Username()+" has entered the room\n")
			requester.Deliver(wire.CmdRoomJoinOk, "Successfully joined room\n")
			return true
		}
	}

	// count < maxMembers guarantees a free slot; reaching here means the
	// accounting and the slot array disagree.
	metrics.IncRoomCapacityRejections()
	requester.Deliver(wire.ErrRoomCapacityFull, "Cannot join room: room is full\n")
	return false
}

// Leave removes requester from the room it currently occupies (a no-op if
// it is not in a room), broadcasts a departure notice, and clears the room
// back to its unused state if it becomes empty.
func (r *Registry) Leave(requester Member) {
	index := requester.RoomIndex()
	if index < 0 || index >= len(r.rooms) {
		return
	}

	rm := r.rooms[index]
	rm.mu.Lock()
	defer rm.mu.Unlock()

	removed := false
	for i, m := range rm.members {
		if m == requester {
			rm.members[i] = nil
			rm.count--
			removed = true
			break
		}
	}
	if !removed {
		return
	}

	broadcastLocked(rm, requester, requester.Username()+" left the room\n")
	requester.ExitRoom()

	if rm.count == 0 {
		rm.name = ""
		for i := range rm.members {
			rm.members[i] = nil
		}
		rm.inUse = false
	}
}

// List builds and delivers a textual listing of every in-use room.
func (r *Registry) List(requester Member) {
	var b strings.Builder
	any := false
	for i, rm := range r.rooms {
		rm.mu.Lock()
		if rm.inUse {
			any = true
			b.WriteString("Room ")
			b.WriteString(strconv.Itoa(i))
			b.WriteString(": ")
			b.WriteString(rm.name)
			b.WriteByte('\n')
		}
		rm.mu.Unlock()
	}
	if !any {
		b.WriteString("No chat rooms available!\nUse the create room command to start your own chat room.\n")
	}
	requester.Deliver(wire.CmdRoomListResponse, b.String())
}

// Broadcast delivers a chat message from sender to every other member of
// roomIndex.
func (r *Registry) Broadcast(sender Member, roomIndex int, content string) {
	if roomIndex < 0 || roomIndex >= len(r.rooms) {
		return
	}
	rm := r.rooms[roomIndex]
	rm.mu.Lock()
	defer rm.mu.Unlock()
	broadcastLocked(rm, sender, sender.Username()+": "+content)
	metrics.IncMessagesBroadcast()
}

// broadcastLocked delivers content to every member of rm other than sender.
// Callers must hold rm.mu.
func broadcastLocked(rm *room, sender Member, content string) {
	for _, m := range rm.members {
		if m != nil && m != sender {
			m.Deliver(wire.CmdRoomMsg, content)
		}
	}
}
