// Package server dispatches decoded client frames to the directory, room
// manager, and broadcast paths.
package server

import "log"

// RouteResult reports what the router did with an inbound frame. Results
// exist for logging and tests only; nothing is ever sent back to the client
// on rejection, matching the relay's silent-degradation wire behavior.
type RouteResult int

const (
	RouteAccepted RouteResult = iota
	RouteMalformed
	RouteMissingName
	RouteDuplicateName
	RouteSelfMessage
	RouteRecipientNotFound
	RouteUnknownType
)

func (r RouteResult) String() string {
	switch r {
	case RouteAccepted:
		return "accepted"
	case RouteMalformed:
		return "malformed"
	case RouteMissingName:
		return "missing name"
	case RouteDuplicateName:
		return "duplicate name"
	case RouteSelfMessage:
		return "self message"
	case RouteRecipientNotFound:
		return "recipient not found"
	case RouteUnknownType:
		return "unknown type"
	default:
		return "unknown result"
	}
}

// route decodes one frame and dispatches it. It runs on the hub goroutine,
// so directory and room mutations need no locking.
//
// Public and private messages are forwarded regardless of whether the sender
// ever logged in; the router trusts the userName carried in the payload.
func (h *Hub) route(c *Client, payload []byte) RouteResult {
	msg, err := DecodeInbound(payload)
	if err != nil {
		log.Printf("Dropping malformed message from %s: %v", c.addr, err)
		return RouteMalformed
	}
	if msg.UserName == "" {
		log.Printf("Dropping %s message without userName from %s", msg.Type, c.addr)
		return RouteMissingName
	}

	switch msg.Type {
	case TypeLogin:
		return h.handleLogin(c, msg)
	case TypePrivateMessage:
		return h.handlePrivateMessage(c, msg)
	case TypePublicMessage:
		h.broadcastRaw(msg.Raw)
		return RouteAccepted
	default:
		log.Printf("Unknown message type %q from %s", msg.Type, c.addr)
		return RouteUnknownType
	}
}

// handleLogin claims a display name for the sending connection. Duplicate
// names are dropped without a response; the directory stays untouched and
// no roster broadcast fires.
func (h *Hub) handleLogin(c *Client, msg *InboundMessage) RouteResult {
	user, ok := h.directory.login(c.identity, msg.UserName)
	if !ok {
		log.Printf("Rejected login %q from %s: name already taken", msg.UserName, c.addr)
		return RouteDuplicateName
	}

	log.Printf("User %q logged in from %s", user.UserName, c.addr)
	h.broadcastActiveUsers()
	return RouteAccepted
}

// handlePrivateMessage opens a brand-new room seeded with the sender, tries
// to pull the target's live connection into it, and delivers the raw payload
// to whoever ended up inside. A failed join therefore still echoes the
// message back to the sender alone.
func (h *Hub) handlePrivateMessage(c *Client, msg *InboundMessage) RouteResult {
	roomID := h.rooms.create(c)

	result := RouteAccepted
	target := h.resolveTarget(msg.UserTo)
	switch {
	case target == nil:
		log.Printf("Private message from %s: recipient not connected; delivering to room %s as-is", c.addr, roomID)
		result = RouteRecipientNotFound
	case target == c:
		// The sender already seeds the room; joining it again would
		// deliver the message twice.
		log.Printf("Private message from %s addressed to itself", c.addr)
		result = RouteSelfMessage
	default:
		if !h.rooms.join(roomID, target) {
			result = RouteRecipientNotFound
		}
	}

	h.deliverToRoom(roomID, msg.Raw)
	return result
}

// resolveTarget maps a userTo reference to a live connection, preferring the
// opaque identity and falling back to the display name via the directory.
func (h *Hub) resolveTarget(ref *UserRef) *Client {
	if ref == nil {
		return nil
	}
	if ref.Identity != "" {
		return h.findClientByIdentity(ref.Identity)
	}
	user, ok := h.directory.findByDisplayName(ref.UserName)
	if !ok {
		return nil
	}
	return h.findClientByIdentity(user.Identity)
}

func (h *Hub) findClientByIdentity(identity string) *Client {
	if identity == "" {
		return nil
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if client.identity == identity {
			return client
		}
	}
	return nil
}
