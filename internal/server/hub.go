// Package server coordinates connection registration, message routing, and
// fan-out for the relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// inboundFrame pairs a raw client frame with the connection it arrived on.
type inboundFrame struct {
	client  *Client
	payload []byte
}

// Hub is the single writer for all shared routing state: the set of open
// connections, the user directory, and the room registry.
//
// Concurrency model
//   - Run executes in one dedicated goroutine. The directory and room
//     manager are mutated only there, so they carry no locks of their own.
//   - Connection goroutines talk to the hub exclusively through the
//     register, unregister, and inbound channels.
//   - The clients map is additionally guarded by a mutex because the
//     shutdown path and send-failure eviction inspect it from outside the
//     Run goroutine.
//   - Sends go through buffered per-client channels and never block: a
//     client that stops draining its buffer is dropped rather than stalling
//     a broadcast.
type Hub struct {
	clients   map[*Client]bool
	directory *directory
	rooms     *roomManager

	inbound    chan inboundFrame
	register   chan *Client
	unregister chan *Client

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub with an empty directory and room registry. The
// returned Hub is inert until Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		directory:  newDirectory(),
		rooms:      newRoomManager(),
		inbound:    make(chan inboundFrame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients with the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run processes hub events until Shutdown is called. It must execute in its
// own goroutine; it is the only goroutine allowed to touch the directory and
// room registry.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client registered from %s. Total clients: %d", client.addr, clientCount)

			// The newcomer immediately sees who is logged in.
			h.broadcastActiveUsers()

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case frame := <-h.inbound:
			h.route(frame.client, frame.payload)
		}
	}
}

// handleDisconnect runs the teardown sequence for a closing connection:
// leave its room, drop its directory entry, and re-broadcast the roster.
// The registration check makes the cleanup run exactly once even when the
// read pump and a failed send race to unregister the same client.
func (h *Hub) handleDisconnect(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	log.Printf("Client unregistered from %s. Total clients: %d", client.addr, clientCount)

	h.rooms.leave(client)
	h.directory.remove(client.identity)
	h.broadcastActiveUsers()
}

// broadcastActiveUsers sends the full logged-in roster to every open
// connection, including ones that never logged in.
func (h *Hub) broadcastActiveUsers() {
	payload, err := json.Marshal(ActiveUsersMessage{
		Type:        TypeActiveUsers,
		ActiveUsers: h.directory.snapshot(),
	})
	if err != nil {
		log.Printf("Error encoding active users broadcast: %v", err)
		return
	}
	h.broadcastRaw(payload)
}

// broadcastRaw delivers payload verbatim to every open connection. Delivery
// is best effort; clients with full send buffers are evicted.
func (h *Hub) broadcastRaw(payload []byte) {
	clients := h.clientSnapshot()

	var failed []*Client
	for _, client := range clients {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.evictClients(failed)
}

// deliverToRoom sends payload verbatim to every current member of a room.
func (h *Hub) deliverToRoom(roomID string, payload []byte) {
	var failed []*Client
	for _, member := range h.rooms.members(roomID) {
		if !h.safeSend(member, payload) {
			failed = append(failed, member)
		}
	}
	h.evictClients(failed)
}

// clientSnapshot returns a point-in-time copy of the open connections.
func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// safeSend queues payload on the client's send channel without blocking.
// It reports false when the client is gone or its buffer is full.
func (h *Hub) safeSend(client *Client, payload []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// evictClients drops clients whose sends failed. Their directory and room
// state is cleaned up here because the read pump's later unregister will
// find them already removed. No roster broadcast is triggered; the next
// login or disconnect refreshes it.
func (h *Hub) evictClients(clients []*Client) {
	if len(clients) == 0 {
		return
	}

	h.mutex.Lock()
	var evicted []*Client
	for _, client := range clients {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			evicted = append(evicted, client)
			log.Printf("Client from %s removed due to full send buffer", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, client := range evicted {
		close(client.send)
		h.rooms.leave(client)
		h.directory.remove(client.identity)
	}
}

// shutdownClients closes every open connection so the pump goroutines
// unwind.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", client.addr, err)
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown stops the hub's event loop and waits for all connection
// goroutines to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

var hub = NewHub()

// GetHub returns the process-wide hub instance for shutdown coordination.
func GetHub() *Hub {
	return hub
}
