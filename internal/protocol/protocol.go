// Package protocol defines the WebSocket messages pushed to browser clients.
package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeState is sent by the server when capture starts, stops or the store is cleared
	TypeState MessageType = "state"

	// TypeStats is sent periodically by the server while capturing
	TypeStats MessageType = "stats"

	// TypeStatusRequest is sent by a client to get an immediate TypeState reply
	TypeStatusRequest MessageType = "status_req"

	// TypeCommand is sent by a client to start or stop capture
	TypeCommand MessageType = "command"

	// TypeError is sent by the server when a client command fails
	TypeError MessageType = "error"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatePayload is the payload for TypeState
type StatePayload struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Samples   int    `json:"samples"`
	Sessions  int    `json:"sessions"`
}

// StatsPayload is the payload for TypeStats
type StatsPayload struct {
	SessionID string `json:"session_id"`
	Recorded  int    `json:"recorded"`
	Samples   int    `json:"samples"`
}

// Command actions
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// CommandPayload is the payload for TypeCommand
type CommandPayload struct {
	Action string `json:"action"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Message string `json:"message"`
}
