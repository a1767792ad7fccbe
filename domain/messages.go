package domain

import "time"

// NotificationType identifies a message sent toward the display layer
type NotificationType string

const (
	NotificationStatusUpdate     NotificationType = "STATUS_UPDATE"
	NotificationTranscriptUpdate NotificationType = "TRANSCRIPT_UPDATE"
	NotificationAIResponseText   NotificationType = "AI_RESPONSE_TEXT"
	NotificationAIError          NotificationType = "AI_ERROR"
	NotificationAIAudioFinished  NotificationType = "AI_AUDIO_FINISHED"
	NotificationReminder         NotificationType = "REMINDER"
)

// Status is the coarse assistant status shown by the display
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusListening  Status = "LISTENING"
	StatusProcessing Status = "PROCESSING"
	StatusError      Status = "ERROR"
)

// Notification is the envelope broadcast to display clients
type Notification struct {
	Type      NotificationType `json:"type"`
	Payload   interface{}      `json:"payload,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// StatusPayload carries STATUS_UPDATE data
type StatusPayload struct {
	Status Status `json:"status"`
	Text   string `json:"text"`
}

// TranscriptPayload carries TRANSCRIPT_UPDATE data
type TranscriptPayload struct {
	Transcript string `json:"transcript"`
}

// AIResponsePayload carries AI_RESPONSE_TEXT data
type AIResponsePayload struct {
	Content     string        `json:"content"`
	ChatHistory []ChatHistory `json:"chatHistory"`
}

// ChatHistory is the display view of a conversation turn
type ChatHistory struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIErrorPayload carries AI_ERROR data
type AIErrorPayload struct {
	Message string `json:"message"`
}

// ReminderPayload carries REMINDER data
type ReminderPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NewStatusUpdate builds a STATUS_UPDATE notification
func NewStatusUpdate(status Status, text string) Notification {
	return Notification{
		Type:      NotificationStatusUpdate,
		Payload:   StatusPayload{Status: status, Text: text},
		Timestamp: time.Now(),
	}
}

// NewTranscriptUpdate builds a TRANSCRIPT_UPDATE notification
func NewTranscriptUpdate(transcript string) Notification {
	return Notification{
		Type:      NotificationTranscriptUpdate,
		Payload:   TranscriptPayload{Transcript: transcript},
		Timestamp: time.Now(),
	}
}

// NewAIResponseText builds an AI_RESPONSE_TEXT notification
func NewAIResponseText(content string, history []ChatHistory) Notification {
	return Notification{
		Type:      NotificationAIResponseText,
		Payload:   AIResponsePayload{Content: content, ChatHistory: history},
		Timestamp: time.Now(),
	}
}

// NewAIError builds an AI_ERROR notification
func NewAIError(message string) Notification {
	return Notification{
		Type:      NotificationAIError,
		Payload:   AIErrorPayload{Message: message},
		Timestamp: time.Now(),
	}
}

// NewAIAudioFinished builds an AI_AUDIO_FINISHED notification
func NewAIAudioFinished() Notification {
	return Notification{
		Type:      NotificationAIAudioFinished,
		Timestamp: time.Now(),
	}
}

// NewReminder builds a REMINDER notification
func NewReminder(id, message string) Notification {
	return Notification{
		Type:      NotificationReminder,
		Payload:   ReminderPayload{ID: id, Message: message},
		Timestamp: time.Now(),
	}
}
