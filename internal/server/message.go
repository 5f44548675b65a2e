// Package server defines the JSON wire format exchanged with relay clients
// and the boundary decoding shared by client and hub logic.
package server

import (
	"encoding/json"
	"errors"
	"strings"
)

// MessageType identifies the kind of a wire message. Inbound frames carry one
// of the client types; the server only ever originates TypeActiveUsers.
type MessageType string

const (
	// Client → server.
	TypeLogin          MessageType = "login"
	TypePublicMessage  MessageType = "publicMessage"
	TypePrivateMessage MessageType = "privateMessage"

	// Server → client.
	TypeActiveUsers MessageType = "activeUsers"
)

// UserRef names a participant on the wire: the server-minted identity plus
// the user-chosen display name.
type UserRef struct {
	Identity string `json:"identity"`
	UserName string `json:"userName"`
}

// InboundMessage is a client frame decoded once at the connection boundary.
// Raw keeps the original bytes so forwarded messages are delivered verbatim.
// An unrecognized Type is preserved as-is and dispatched as unknown.
type InboundMessage struct {
	Type        MessageType `json:"type"`
	UserName    string      `json:"userName"`
	MessageText string      `json:"messageText,omitempty"`
	UserTo      *UserRef    `json:"userTo,omitempty"`

	Raw []byte `json:"-"`
}

// ActiveUsersMessage is the full-roster broadcast sent after every connect,
// successful login, and disconnect.
type ActiveUsersMessage struct {
	Type        MessageType `json:"type"`
	ActiveUsers []UserRef   `json:"activeUsers"`
}

var errMissingType = errors.New("message has no type")

// DecodeInbound parses a raw client frame. Frames that are not JSON objects
// or carry no type field are malformed and dropped by the caller.
func DecodeInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errMissingType
	}
	msg.Raw = data
	return &msg, nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
