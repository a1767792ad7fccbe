package websocket

import (
	"encoding/json"
	"time"
)

// ControlType is the type of a message sent by a display
type ControlType string

const (
	ControlTypePing  ControlType = "ping"
	ControlTypePong  ControlType = "pong"
	ControlTypeError ControlType = "error"
)

// ControlMessage is the envelope of display-to-hub messages
type ControlMessage struct {
	Type      ControlType `json:"type"`
	Data      string      `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// handleControlMessage returns the reply for a display message, or nil when
// none is due.
func handleControlMessage(raw []byte) []byte {
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return encodeControl(ControlMessage{Type: ControlTypeError, Data: "invalid JSON"})
	}

	switch msg.Type {
	case ControlTypePing:
		return encodeControl(ControlMessage{Type: ControlTypePong, Data: msg.Data})
	case ControlTypePong:
		return nil
	default:
		return encodeControl(ControlMessage{Type: ControlTypeError, Data: "unsupported message type: " + string(msg.Type)})
	}
}

func encodeControl(msg ControlMessage) []byte {
	msg.Timestamp = time.Now().Format(time.RFC3339)
	out, _ := json.Marshal(msg)
	return out
}
