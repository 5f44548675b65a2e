package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveWithTimeout(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a message for %s", c.addr)
		return nil
	}
}

func TestNewHub(t *testing.T) {
	h := NewHub()

	require.NotNil(t, h)
	assert.NotNil(t, h.GetRegisterChan())
	assert.NotNil(t, h.GetUnregisterChan())
	assert.NotNil(t, h.directory)
	assert.NotNil(t, h.rooms)
}

func TestHandleDisconnectCleanup(t *testing.T) {
	h := NewHub()
	c1 := addTestClient(h, "c1")
	c2 := addTestClient(h, "c2")

	require.Equal(t, RouteAccepted, h.route(c1, loginFrame("alice")))
	require.Equal(t, RouteAccepted, h.route(c2, loginFrame("bob")))
	payload := []byte(`{"type":"privateMessage","userName":"alice","userTo":{"userName":"bob"},"messageText":"hi"}`)
	require.Equal(t, RouteAccepted, h.route(c1, payload))
	roomID := c1.currentRoom
	require.Len(t, h.rooms.members(roomID), 2)
	drainSend(c1)
	drainSend(c2)

	h.handleDisconnect(c2)

	_, found := h.directory.findByIdentity(c2.Identity())
	assert.False(t, found, "disconnected user must leave the directory")
	require.Len(t, h.rooms.members(roomID), 1, "disconnected connection must leave its room")
	assert.Same(t, c1, h.rooms.members(roomID)[0])

	var roster ActiveUsersMessage
	require.NoError(t, json.Unmarshal(mustReceive(t, c1), &roster))
	assert.Equal(t, TypeActiveUsers, roster.Type)
	require.Len(t, roster.ActiveUsers, 1)
	assert.Equal(t, "alice", roster.ActiveUsers[0].UserName)

	// A second disconnect for the same client is a no-op.
	h.handleDisconnect(c2)
	assert.Empty(t, drainSend(c1))

	// The last member leaving deletes the room.
	h.handleDisconnect(c1)
	assert.Nil(t, h.rooms.members(roomID))
	assert.Equal(t, 0, h.rooms.size())
	assert.Equal(t, 0, h.directory.size())
}

func TestSafeSendRejectsUnknownClient(t *testing.T) {
	h := NewHub()
	stranger := NewClient(nil, h, "stranger")

	assert.False(t, h.safeSend(stranger, []byte("hello")))
}

func TestBroadcastEvictsFullClients(t *testing.T) {
	h := NewHub()
	c1 := addTestClient(h, "c1")
	c2 := addTestClient(h, "c2")

	require.Equal(t, RouteAccepted, h.route(c1, loginFrame("alice")))
	require.Equal(t, RouteAccepted, h.route(c2, loginFrame("bob")))
	drainSend(c1)

	// Stuff c2's buffer so the next send cannot be queued.
	for len(c2.send) < cap(c2.send) {
		c2.send <- []byte("backlog")
	}

	h.broadcastRaw([]byte(`{"type":"publicMessage","userName":"alice","messageText":"hi"}`))

	h.mutex.RLock()
	_, stillRegistered := h.clients[c2]
	h.mutex.RUnlock()
	assert.False(t, stillRegistered, "a client with a full send buffer must be dropped")
	_, found := h.directory.findByIdentity(c2.Identity())
	assert.False(t, found, "an evicted client must leave the directory")
	assert.True(t, c2.closed)
}

func TestHubRunLifecycle(t *testing.T) {
	h := NewHub()
	go h.Run()

	c1 := NewClient(nil, h, "c1")
	h.GetRegisterChan() <- c1

	// Registration immediately shows the newcomer the (empty) roster.
	var roster ActiveUsersMessage
	require.NoError(t, json.Unmarshal(receiveWithTimeout(t, c1), &roster))
	assert.Equal(t, TypeActiveUsers, roster.Type)
	assert.Empty(t, roster.ActiveUsers)

	h.inbound <- inboundFrame{client: c1, payload: loginFrame("alice")}
	require.NoError(t, json.Unmarshal(receiveWithTimeout(t, c1), &roster))
	require.Len(t, roster.ActiveUsers, 1)
	assert.Equal(t, "alice", roster.ActiveUsers[0].UserName)

	// Unregistering closes the send channel once the hub processes it.
	h.GetUnregisterChan() <- c1
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-c1.send:
			if !ok {
				require.NoError(t, h.Shutdown(time.Second))
				return
			}
		case <-deadline:
			t.Fatal("send channel was not closed after unregistering")
		}
	}
}

func TestHubShutdownWithoutClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	require.NoError(t, h.Shutdown(time.Second))
}
