package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState is a state of the wake-to-reply state machine
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateCommandCapture SessionState = "command_capture"
	StateProcessing     SessionState = "processing"
	StateSpeaking       SessionState = "speaking"
	StateError          SessionState = "error"
)

// allowedTransitions lists every edge of the state machine. Error is reachable
// from any non-idle state and always leads back to Idle, or to Speaking when an
// apology phrase is played first.
var allowedTransitions = map[SessionState][]SessionState{
	StateIdle:           {StateCommandCapture},
	StateCommandCapture: {StateProcessing, StateError},
	StateProcessing:     {StateSpeaking, StateError},
	StateSpeaking:       {StateIdle, StateError},
	StateError:          {StateIdle, StateSpeaking},
}

// CanTransition reports whether from -> to is an edge of the state machine
func CanTransition(from, to SessionState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the state of one wake-to-sleep cycle
type Session struct {
	ID              string        `json:"id"`
	State           SessionState  `json:"state"`
	StartedAt       time.Time     `json:"started_at"`
	CommandDeadline time.Time     `json:"command_deadline"`
	TranscriptSoFar string        `json:"transcript_so_far"`
	FinalTranscript *string       `json:"final_transcript,omitempty"`
	Failure         string        `json:"failure,omitempty"`
	Reply           string        `json:"reply,omitempty"`
	ToolName        string        `json:"tool_name,omitempty"`
	ProcessingTime  time.Duration `json:"processing_time,omitempty"`
}

// NewSession creates a session entering command capture with the given timeout
func NewSession(now time.Time, commandTimeout time.Duration) *Session {
	return &Session{
		ID:              uuid.NewString(),
		State:           StateCommandCapture,
		StartedAt:       now,
		CommandDeadline: now.Add(commandTimeout),
	}
}

// Transition moves the session to the next state if the edge exists
func (s *Session) Transition(to SessionState) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("invalid session transition %s -> %s", s.State, to)
	}
	s.State = to
	return nil
}

// UpdateTranscript records an interim transcript
func (s *Session) UpdateTranscript(text string) {
	s.TranscriptSoFar = text
}

// Finalize records the final transcript
func (s *Session) Finalize(text string) {
	s.TranscriptSoFar = text
	s.FinalTranscript = &text
}

// HasFinal reports whether a final transcript was recorded
func (s *Session) HasFinal() bool {
	return s.FinalTranscript != nil
}

// Fail moves the session into the error pseudo-state
func (s *Session) Fail(reason string) error {
	s.Failure = reason
	return s.Transition(StateError)
}

// Expired reports whether the command-capture deadline has passed
func (s *Session) Expired(now time.Time) bool {
	return s.State == StateCommandCapture && !now.Before(s.CommandDeadline)
}

// SessionSnapshot is a read-only view of the controller for status queries
type SessionSnapshot struct {
	State      SessionState `json:"state"`
	SessionID  string       `json:"sessionId,omitempty"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Failure    string       `json:"failure,omitempty"`
}

// Snapshot returns the read-only view of s
func (s *Session) Snapshot() SessionSnapshot {
	started := s.StartedAt
	return SessionSnapshot{
		State:      s.State,
		SessionID:  s.ID,
		StartedAt:  &started,
		Transcript: s.TranscriptSoFar,
		Failure:    s.Failure,
	}
}
