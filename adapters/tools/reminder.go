package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const maxReminderMinutes = 24 * 60

// Reminders schedules REMINDER notifications. Timers run independently of the
// audio session.
type Reminders struct {
	notifier repositories.Notifier
	unit     time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

var _ repositories.Tool = (*Reminders)(nil)

func NewReminders(notifier repositories.Notifier, logger *zap.Logger) *Reminders {
	return &Reminders{
		notifier: notifier,
		unit:     time.Minute,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
	}
}

func (r *Reminders) Name() string { return "setReminder" }

func (r *Reminders) Description() string {
	return "Set a reminder that is shown on the mirror after a number of minutes"
}

func (r *Reminders) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"message": map[string]interface{}{
			"type":        "string",
			"description": "What to remind the user about",
		},
		"minutes": map[string]interface{}{
			"type":        "number",
			"description": "Minutes from now",
		},
	}, "message", "minutes")
}

func (r *Reminders) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	message, err := stringArg(args, "message")
	if err != nil {
		return nil, err
	}
	minutes, err := numberArg(args, "minutes")
	if err != nil {
		return nil, err
	}
	if minutes <= 0 || minutes > maxReminderMinutes {
		return nil, fmt.Errorf("minutes must be between 0 and %d", maxReminderMinutes)
	}

	id := uuid.NewString()
	delay := time.Duration(minutes * float64(r.unit))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, fmt.Errorf("reminders are shut down")
	}
	r.pending[id] = time.AfterFunc(delay, func() { r.fire(id, message) })

	r.logger.Info("Reminder scheduled", zap.String("id", id), zap.Duration("in", delay))

	return map[string]interface{}{
		"id":      id,
		"message": message,
		"dueAt":   time.Now().Add(delay).Format(time.RFC3339),
	}, nil
}

func (r *Reminders) fire(id, message string) {
	r.mu.Lock()
	_, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	r.logger.Info("Reminder due", zap.String("id", id))
	r.notifier.Notify(domain.NewReminder(id, message))
}

// Pending returns the number of reminders not yet fired
func (r *Reminders) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop cancels every pending reminder
func (r *Reminders) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, timer := range r.pending {
		timer.Stop()
		delete(r.pending, id)
	}
}
