package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/observability"
)

const (
	eventQueueSize = 16
	archiveTimeout = 5 * time.Second

	listeningText  = "Listening..."
	thinkingText   = "Thinking..."
	speakingText   = "Speaking..."
	deviceLostText = "Microphone unavailable"
)

// SessionConfig holds the timing and wording of the session state machine
type SessionConfig struct {
	CommandTimeout  time.Duration
	SettleDelay     time.Duration
	ResponseTimeout time.Duration
	LanguageCode    string
	// ApologyText is spoken after a backend failure. Empty disables it.
	ApologyText string
	IdleText    string
}

// SessionDependencies groups the collaborators of the controller. Archive may
// be nil.
type SessionDependencies struct {
	Source   repositories.AudioSource
	Spotter  repositories.KeywordSpotter
	STT      repositories.SpeechToText
	Engine   *ResponseEngine
	Speaker  *Speaker
	History  *entities.ConversationHistory
	Archive  repositories.TurnArchive
	Notifier repositories.Notifier
	Metrics  *observability.Metrics
}

// SessionController owns the audio source and drives the wake-to-reply state
// machine. Every transition happens on the Run goroutine; collaborators
// report back through the event queue.
type SessionController struct {
	source   repositories.AudioSource
	spotter  repositories.KeywordSpotter
	stt      repositories.SpeechToText
	engine   *ResponseEngine
	speaker  *Speaker
	history  *entities.ConversationHistory
	archive  repositories.TurnArchive
	notifier repositories.Notifier
	metrics  *observability.Metrics
	config   SessionConfig
	logger   *zap.Logger

	events chan sessionEvent

	mu      sync.RWMutex
	session *entities.Session

	// owned by the Run goroutine
	gen             uint64
	listener        *hotwordListener
	capture         *commandCapture
	deadline        *time.Timer
	processingStart time.Time
	workers         sync.WaitGroup
}

func NewSessionController(deps SessionDependencies, config SessionConfig, logger *zap.Logger) (*SessionController, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("audio source is required")
	case deps.Spotter == nil:
		return nil, errors.New("keyword spotter is required")
	case deps.STT == nil:
		return nil, errors.New("speech to text is required")
	case deps.Engine == nil:
		return nil, errors.New("response engine is required")
	case deps.Speaker == nil:
		return nil, errors.New("speaker is required")
	case deps.History == nil:
		return nil, errors.New("conversation history is required")
	}

	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 15 * time.Second
		logger.Info("Using default command timeout", zap.Duration("commandTimeout", config.CommandTimeout))
	}
	if config.ResponseTimeout <= 0 {
		config.ResponseTimeout = 30 * time.Second
		logger.Info("Using default response timeout", zap.Duration("responseTimeout", config.ResponseTimeout))
	}
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}
	if config.LanguageCode == "" {
		config.LanguageCode = "en-US"
	}
	if config.IdleText == "" {
		config.IdleText = "Say the wake word"
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = repositories.NotifierFunc(func(domain.Notification) {})
	}

	return &SessionController{
		source:   deps.Source,
		spotter:  deps.Spotter,
		stt:      deps.STT,
		engine:   deps.Engine,
		speaker:  deps.Speaker,
		history:  deps.History,
		archive:  deps.Archive,
		notifier: notifier,
		metrics:  deps.Metrics,
		config:   config,
		logger:   logger,
		events:   make(chan sessionEvent, eventQueueSize),
	}, nil
}

// State returns the current state
func (c *SessionController) State() entities.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return entities.StateIdle
	}
	return c.session.State
}

// Snapshot returns a read-only view of the current session
func (c *SessionController) Snapshot() entities.SessionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return entities.SessionSnapshot{State: entities.StateIdle}
	}
	return c.session.Snapshot()
}

// Run listens for the wake word until ctx is done. It returns nil on
// cancellation and a domain.ErrDevice error when the audio device is lost.
func (c *SessionController) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.shutdown()
		if err != nil {
			c.notifier.Notify(domain.NewStatusUpdate(domain.StatusError, deviceLostText))
		}
	}()

	if err := c.startListening(ctx); err != nil {
		return err
	}
	c.metrics.SetState(string(entities.StateIdle))
	c.notifier.Notify(domain.NewStatusUpdate(domain.StatusIdle, c.config.IdleText))
	c.logger.Info("Session controller started")

	for {
		var deadline <-chan time.Time
		if c.deadline != nil {
			deadline = c.deadline.C
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Session controller stopping")
			return nil
		case <-deadline:
			c.deadline = nil
			if err := c.failCapture(ctx, "no command heard before the deadline"); err != nil {
				return err
			}
		case ev := <-c.events:
			if err := c.handle(ctx, ev); err != nil {
				c.logger.Error("Fatal session error", zap.Error(err))
				return err
			}
		}
	}
}

func (c *SessionController) handle(ctx context.Context, ev sessionEvent) error {
	state := c.State()
	c.logger.Debug("Session event", zap.Stringer("event", ev), zap.String("state", string(state)))

	if ev.kind == eventDeviceFailed {
		if (c.listener != nil && ev.gen == c.listener.gen) || (c.capture != nil && ev.gen == c.capture.gen) {
			return ev.err
		}
		return nil
	}

	switch ev.kind {
	case eventWake:
		if state != entities.StateIdle || c.listener == nil || ev.gen != c.listener.gen {
			c.logger.Debug("Ignoring wake outside idle", zap.String("state", string(state)))
			return nil
		}
		return c.onWake(ctx)

	case eventInterim, eventFinal, eventTranscriptionFailed:
		if state != entities.StateCommandCapture || c.capture == nil || ev.gen != c.capture.gen {
			return nil
		}
		switch ev.kind {
		case eventInterim:
			c.update(func(s *entities.Session) { s.UpdateTranscript(ev.text) })
			c.notifier.Notify(domain.NewTranscriptUpdate(ev.text))
			return nil
		case eventFinal:
			return c.onFinal(ctx, ev.text)
		default:
			c.logger.Warn("Transcription failed", zap.Error(ev.err))
			return c.failCapture(ctx, ev.err.Error())
		}

	case eventResponse:
		if state != entities.StateProcessing || ev.gen != c.gen {
			return nil
		}
		return c.onResponse(ctx, ev)

	case eventPlaybackDone:
		if state != entities.StateSpeaking || ev.gen != c.gen {
			return nil
		}
		return c.onPlaybackDone(ctx, ev)
	}
	return nil
}

func (c *SessionController) onWake(ctx context.Context) error {
	c.metrics.ObserveWake()
	c.stopListening()
	c.settle(ctx)

	c.gen++
	session := entities.NewSession(time.Now(), c.config.CommandTimeout)
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.metrics.ObserveTransition(string(entities.StateIdle), string(entities.StateCommandCapture))

	c.logger.Info("Session started", zap.String("sessionID", session.ID))

	if err := c.startCapture(ctx, c.gen); err != nil {
		if domain.IsFatal(err) {
			return err
		}
		c.logger.Warn("Failed to start transcription", zap.Error(err))
		return c.failCapture(ctx, err.Error())
	}

	c.deadline = time.NewTimer(c.config.CommandTimeout)
	c.notifier.Notify(domain.NewStatusUpdate(domain.StatusListening, listeningText))
	return nil
}

func (c *SessionController) onFinal(ctx context.Context, text string) error {
	c.stopDeadline()

	text = strings.TrimSpace(text)
	if text == "" {
		return c.failCapture(ctx, transcriptionError(errors.New("empty final transcript")).Error())
	}

	c.stopCapture()
	c.update(func(s *entities.Session) { s.Finalize(text) })
	c.notifier.Notify(domain.NewTranscriptUpdate(text))
	c.transition(entities.StateProcessing)
	c.notifier.Notify(domain.NewStatusUpdate(domain.StatusProcessing, thinkingText))

	c.logger.Info("Command captured", zap.String("transcript", text))

	c.processingStart = time.Now()
	history := c.history.Turns()
	gen := c.gen
	c.spawn(func() {
		rctx, cancel := context.WithTimeout(ctx, c.config.ResponseTimeout)
		defer cancel()
		response, err := c.engine.Respond(rctx, text, history)
		c.post(ctx, sessionEvent{kind: eventResponse, gen: gen, response: response, err: err})
	})
	return nil
}

func (c *SessionController) onResponse(ctx context.Context, ev sessionEvent) error {
	if ev.err != nil {
		c.logger.Error("Failed to get a response", zap.Error(ev.err))
		c.notifier.Notify(domain.NewAIError(ev.err.Error()))
		c.fail(ev.err.Error())

		if c.config.ApologyText == "" {
			return c.returnToIdle(ctx)
		}
		c.transition(entities.StateSpeaking)
		c.speak(ctx, c.config.ApologyText, true)
		return nil
	}

	latency := time.Since(c.processingStart)
	c.metrics.ObserveResponseLatency(latency)

	session := c.current()
	userText := *session.FinalTranscript
	c.history.AppendExchange(userText, ev.response.Content)
	c.update(func(s *entities.Session) {
		s.Reply = ev.response.Content
		s.ToolName = ev.response.ToolName
		s.ProcessingTime = latency
	})
	c.archiveTurn(ctx, repositories.TurnRecord{
		SessionID:     session.ID,
		UserText:      userText,
		AssistantText: ev.response.Content,
		ToolName:      ev.response.ToolName,
		StartedAt:     session.StartedAt,
		CompletedAt:   time.Now(),
		DurationMs:    time.Since(session.StartedAt).Milliseconds(),
	})

	c.logger.Info("Response ready",
		zap.String("sessionID", session.ID),
		zap.String("tool", ev.response.ToolName),
		zap.Duration("latency", latency))

	c.notifier.Notify(domain.NewAIResponseText(ev.response.Content, chatHistory(c.history.Turns())))
	c.transition(entities.StateSpeaking)
	c.notifier.Notify(domain.NewStatusUpdate(domain.StatusProcessing, speakingText))
	c.speak(ctx, ev.response.Content, false)
	return nil
}

func (c *SessionController) onPlaybackDone(ctx context.Context, ev sessionEvent) error {
	c.notifier.Notify(domain.NewAIAudioFinished())
	if ev.err != nil {
		c.logger.Warn("Playback failed", zap.Error(ev.err), zap.Bool("apology", ev.apology))
		c.fail(ev.err.Error())
	}
	return c.returnToIdle(ctx)
}

// failCapture abandons command capture and resumes hotword listening
func (c *SessionController) failCapture(ctx context.Context, reason string) error {
	c.stopDeadline()
	c.stopCapture()
	c.fail(reason)
	return c.returnToIdle(ctx)
}

// fail enters the Error pseudo-state
func (c *SessionController) fail(reason string) {
	c.mu.Lock()
	from := c.session.State
	err := c.session.Fail(reason)
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("Invalid transition", zap.Error(err))
		return
	}
	c.metrics.ObserveTransition(string(from), string(entities.StateError))
	c.notifier.Notify(domain.NewStatusUpdate(domain.StatusError, reason))
}

// returnToIdle ends the session and reattaches the hotword listener
func (c *SessionController) returnToIdle(ctx context.Context) error {
	c.transition(entities.StateIdle)

	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session != nil {
		c.logger.Info("Session ended",
			zap.String("sessionID", session.ID),
			zap.String("failure", session.Failure),
			zap.Duration("duration", time.Since(session.StartedAt)))
	}

	if ctx.Err() != nil {
		return nil
	}
	c.settle(ctx)
	if err := c.startListening(ctx); err != nil {
		return err
	}
	c.notifier.Notify(domain.NewStatusUpdate(domain.StatusIdle, c.config.IdleText))
	return nil
}

func (c *SessionController) transition(to entities.SessionState) {
	c.mu.Lock()
	from := c.session.State
	err := c.session.Transition(to)
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("Invalid transition", zap.Error(err))
		return
	}
	c.metrics.ObserveTransition(string(from), string(to))
}

func (c *SessionController) speak(ctx context.Context, text string, apology bool) {
	gen := c.gen
	c.spawn(func() {
		err := c.speaker.Speak(ctx, text)
		c.post(ctx, sessionEvent{kind: eventPlaybackDone, gen: gen, err: err, apology: apology})
	})
}

func (c *SessionController) archiveTurn(ctx context.Context, record repositories.TurnRecord) {
	if c.archive == nil {
		return
	}
	c.spawn(func() {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := c.archive.Record(actx, record); err != nil {
			c.logger.Warn("Failed to archive turn", zap.String("sessionID", record.SessionID), zap.Error(err))
		}
	})
}

func (c *SessionController) update(fn func(s *entities.Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		fn(c.session)
	}
}

// current returns a copy of the session
func (c *SessionController) current() entities.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.session
}

func (c *SessionController) stopDeadline() {
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
}

// settle gives the device time to be released before it is reopened
func (c *SessionController) settle(ctx context.Context) {
	if c.config.SettleDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.config.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *SessionController) spawn(fn func()) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		fn()
	}()
}

// post delivers an event unless ctx is done first
func (c *SessionController) post(ctx context.Context, ev sessionEvent) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *SessionController) shutdown() {
	c.stopDeadline()
	c.stopCapture()
	c.stopListening()
	c.speaker.Stop()
	c.workers.Wait()

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.logger.Info("Session controller stopped")
}

func chatHistory(turns []entities.ConversationTurn) []domain.ChatHistory {
	out := make([]domain.ChatHistory, len(turns))
	for i, turn := range turns {
		out[i] = domain.ChatHistory{Role: string(turn.Role), Content: turn.Content}
	}
	return out
}

func (ev sessionEvent) String() string {
	return fmt.Sprintf("%s(gen=%d)", ev.kind, ev.gen)
}
