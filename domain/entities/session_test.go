package entities

import (
	"testing"
	"time"
)

func TestSessionCreation(t *testing.T) {
	now := time.Now()
	session := NewSession(now, 15*time.Second)

	if session.ID == "" {
		t.Error("Expected session ID to be set")
	}

	if session.State != StateCommandCapture {
		t.Errorf("Expected state %s, got %s", StateCommandCapture, session.State)
	}

	if !session.CommandDeadline.Equal(now.Add(15 * time.Second)) {
		t.Errorf("Expected deadline 15s after start, got %v", session.CommandDeadline.Sub(now))
	}

	if session.HasFinal() {
		t.Error("New session should not have a final transcript")
	}
}

func TestSessionHappyPath(t *testing.T) {
	session := NewSession(time.Now(), time.Second)

	session.UpdateTranscript("what")
	session.UpdateTranscript("what time")
	if session.TranscriptSoFar != "what time" {
		t.Errorf("Expected interim transcript 'what time', got %q", session.TranscriptSoFar)
	}

	session.Finalize("what time is it")
	if !session.HasFinal() || *session.FinalTranscript != "what time is it" {
		t.Error("Expected final transcript to be recorded")
	}

	for _, next := range []SessionState{StateProcessing, StateSpeaking, StateIdle} {
		if err := session.Transition(next); err != nil {
			t.Fatalf("Transition to %s failed: %v", next, err)
		}
	}
}

func TestSessionInvalidTransitions(t *testing.T) {
	cases := []struct {
		from, to SessionState
	}{
		{StateIdle, StateProcessing},
		{StateIdle, StateSpeaking},
		{StateCommandCapture, StateSpeaking},
		{StateCommandCapture, StateIdle},
		{StateProcessing, StateIdle},
		{StateProcessing, StateCommandCapture},
		{StateSpeaking, StateCommandCapture},
	}

	for _, tc := range cases {
		session := &Session{State: tc.from}
		if err := session.Transition(tc.to); err == nil {
			t.Errorf("Expected %s -> %s to be rejected", tc.from, tc.to)
		}
		if session.State != tc.from {
			t.Errorf("Rejected transition should keep state %s, got %s", tc.from, session.State)
		}
	}
}

// Every non-idle state must have a path back to idle.
func TestEveryStateReachesIdle(t *testing.T) {
	for from := range allowedTransitions {
		if !reachesIdle(from, map[SessionState]bool{}) {
			t.Errorf("State %s cannot reach idle", from)
		}
	}
}

func reachesIdle(s SessionState, seen map[SessionState]bool) bool {
	if s == StateIdle {
		return true
	}
	if seen[s] {
		return false
	}
	seen[s] = true
	for _, next := range allowedTransitions[s] {
		if reachesIdle(next, seen) {
			return true
		}
	}
	return false
}

func TestSessionFailAndExpiry(t *testing.T) {
	start := time.Now()
	session := NewSession(start, 10*time.Second)

	if session.Expired(start.Add(9 * time.Second)) {
		t.Error("Session should not be expired before its deadline")
	}
	if !session.Expired(start.Add(10 * time.Second)) {
		t.Error("Session should be expired at its deadline")
	}

	if err := session.Fail("deadline"); err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}
	if session.State != StateError || session.Failure != "deadline" {
		t.Errorf("Expected error state with reason, got %s %q", session.State, session.Failure)
	}
	if session.Expired(start.Add(time.Hour)) {
		t.Error("Only command capture sessions expire")
	}
	if err := session.Transition(StateIdle); err != nil {
		t.Errorf("Error state must return to idle: %v", err)
	}
}
