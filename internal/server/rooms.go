// Package server manages the ephemeral two-member rooms that scope private
// message delivery.
package server

import (
	"log"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	// roomCapacity limits every room to the two ends of a private exchange.
	roomCapacity = 2

	roomKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomKeyLength   = 5
)

// room is an ordered pairing of connections. The origin always sits first.
type room struct {
	id      string
	members []*Client
}

// roomManager owns the room registry. Like the directory it is confined to
// the hub goroutine, so its state is mutated without locking.
//
// Rooms are created once per private-message send rather than once per
// conversation: a second message between the same pair opens a second room.
// Rooms disappear as soon as their last member leaves, so the registry only
// ever holds rooms with at least one live connection.
type roomManager struct {
	rooms  map[string]*room
	newKey func() string
}

func newRoomManager() *roomManager {
	gen, err := nanoid.CustomASCII(roomKeyAlphabet, roomKeyLength)
	if err != nil {
		// Only reachable with a broken alphabet or length constant.
		panic(err)
	}
	return &roomManager{
		rooms:  make(map[string]*room),
		newKey: gen,
	}
}

// create opens a new room seeded with origin and tags the origin's
// currentRoom. Generated keys are regenerated while they collide with a
// live room, so a new room never silently replaces an existing one.
func (rm *roomManager) create(origin *Client) string {
	id := rm.newKey()
	for _, taken := rm.rooms[id]; taken; _, taken = rm.rooms[id] {
		id = rm.newKey()
	}

	rm.rooms[id] = &room{id: id, members: []*Client{origin}}
	origin.currentRoom = id
	return id
}

// join adds target to an existing room. Failures are warnings, never errors:
// the message is still delivered to whoever is in the room, and neither
// party is notified.
func (rm *roomManager) join(id string, target *Client) bool {
	if target == nil {
		log.Printf("Room %s: no live connection for target user; skipping join", id)
		return false
	}
	r, ok := rm.rooms[id]
	if !ok {
		log.Printf("Room %s does not exist; cannot join", id)
		return false
	}
	if len(r.members) >= roomCapacity {
		log.Printf("Room %s is full; cannot join", id)
		return false
	}

	r.members = append(r.members, target)
	target.currentRoom = id
	return true
}

// leave removes c from its current room, if any, clearing the room tag. The
// room is deleted once its member list empties. Dangling tags pointing at an
// already-deleted room are tolerated as a no-op.
func (rm *roomManager) leave(c *Client) {
	id := c.currentRoom
	if id == "" {
		return
	}
	c.currentRoom = ""

	r, ok := rm.rooms[id]
	if !ok {
		return
	}
	for i, member := range r.members {
		if member == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if len(r.members) == 0 {
		delete(rm.rooms, id)
	}
}

// members returns the current member list of a room, or nil for an unknown
// id. The returned slice is a copy safe to iterate while delivering.
func (rm *roomManager) members(id string) []*Client {
	r, ok := rm.rooms[id]
	if !ok {
		return nil
	}
	out := make([]*Client, len(r.members))
	copy(out, r.members)
	return out
}

func (rm *roomManager) size() int {
	return len(rm.rooms)
}
