package websocket

import (
	"encoding/json"
	"testing"
)

func TestHandleControlMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType ControlType
		wantNil  bool
	}{
		{name: "ping gets pong", input: `{"type":"ping","data":"x"}`, wantType: ControlTypePong},
		{name: "pong is silent", input: `{"type":"pong"}`, wantNil: true},
		{name: "invalid json", input: `{invalid`, wantType: ControlTypeError},
		{name: "unknown type", input: `{"type":"audio_chunk"}`, wantType: ControlTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := handleControlMessage([]byte(tt.input))
			if tt.wantNil {
				if reply != nil {
					t.Errorf("Expected no reply, got %s", reply)
				}
				return
			}

			var msg ControlMessage
			if err := json.Unmarshal(reply, &msg); err != nil {
				t.Fatalf("Reply is not JSON: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("Expected %s, got %s", tt.wantType, msg.Type)
			}
		})
	}
}

func TestPingEchoesData(t *testing.T) {
	var msg ControlMessage
	if err := json.Unmarshal(handleControlMessage([]byte(`{"type":"ping","data":"abc"}`)), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Data != "abc" || msg.Timestamp == "" {
		t.Errorf("Unexpected pong %+v", msg)
	}
}
