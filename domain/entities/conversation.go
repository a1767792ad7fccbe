package entities

import "sync"

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ConversationTurn is a single immutable entry of the conversation
type ConversationTurn struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ConversationHistory is a bounded, oldest-first log of turns. Turns are only
// ever appended as a (user, assistant) pair so the log never ends on an
// unanswered user turn.
type ConversationHistory struct {
	mu       sync.RWMutex
	turns    []ConversationTurn
	maxTurns int
}

// NewConversationHistory keeps at most maxChatHistory exchanges
func NewConversationHistory(maxChatHistory int) *ConversationHistory {
	if maxChatHistory < 1 {
		maxChatHistory = 1
	}
	return &ConversationHistory{
		maxTurns: maxChatHistory * 2,
	}
}

// AppendExchange records a completed round-trip, evicting the oldest pairs
// beyond capacity.
func (h *ConversationHistory) AppendExchange(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns,
		ConversationTurn{Role: MessageRoleUser, Content: user},
		ConversationTurn{Role: MessageRoleAssistant, Content: assistant},
	)
	h.truncateLocked()
}

// Restore replaces the log with previously saved turns. Unpaired or out of
// order turns are dropped.
func (h *ConversationHistory) Restore(turns []ConversationTurn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = h.turns[:0]
	for i := 0; i+1 < len(turns); i += 2 {
		if turns[i].Role != MessageRoleUser || turns[i+1].Role != MessageRoleAssistant {
			continue
		}
		h.turns = append(h.turns, turns[i], turns[i+1])
	}
	h.truncateLocked()
}

func (h *ConversationHistory) truncateLocked() {
	if over := len(h.turns) - h.maxTurns; over > 0 {
		kept := make([]ConversationTurn, h.maxTurns)
		copy(kept, h.turns[over:])
		h.turns = kept
	}
}

// Turns returns a copy of the whole log
func (h *ConversationHistory) Turns() []ConversationTurn {
	return h.Last(0)
}

// Last returns a copy of the newest n turns; n <= 0 returns everything
func (h *ConversationHistory) Last(n int) []ConversationTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if n > 0 && n < len(h.turns) {
		start = len(h.turns) - n
	}
	out := make([]ConversationTurn, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// Len returns the number of stored turns
func (h *ConversationHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Capacity returns the maximum number of stored turns
func (h *ConversationHistory) Capacity() int {
	return h.maxTurns
}
