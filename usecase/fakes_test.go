package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

var errStreamClosed = errors.New("stream closed")

// fakeSource emits silent chunks and records how the device is shared
type fakeSource struct {
	spotter *fakeSpotter

	mu        sync.Mutex
	open      int
	maxOpen   int
	opens     int
	detectors []int
	failOn    int
}

func (s *fakeSource) Open(ctx context.Context, format repositories.AudioFormat) (repositories.AudioStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opens++
	if s.failOn > 0 && s.opens == s.failOn {
		return nil, errors.New("device busy")
	}
	s.open++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
	if s.spotter != nil {
		s.detectors = append(s.detectors, s.spotter.active())
	}
	return &fakeStream{source: s, closed: make(chan struct{})}, nil
}

func (s *fakeSource) stats() (opens, open, maxOpen int, detectors []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.open, s.maxOpen, append([]int(nil), s.detectors...)
}

type fakeStream struct {
	source *fakeSource
	once   sync.Once
	closed chan struct{}
}

func (s *fakeStream) Read(ctx context.Context) (repositories.AudioChunk, error) {
	select {
	case <-time.After(2 * time.Millisecond):
		return repositories.AudioChunk{Data: make([]byte, 320), SampleRate: 16000}, nil
	case <-s.closed:
		return repositories.AudioChunk{}, errStreamClosed
	case <-ctx.Done():
		return repositories.AudioChunk{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.source.mu.Lock()
		s.source.open--
		s.source.mu.Unlock()
	})
	return nil
}

// fakeSpotter fires a wake on the next processed frame after Wake is called
type fakeSpotter struct {
	pending  atomic.Bool
	mu       sync.Mutex
	live     int
	maxLive  int
	released int
}

func (s *fakeSpotter) Open() (repositories.KeywordDetector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live++
	if s.live > s.maxLive {
		s.maxLive = s.live
	}
	return &fakeDetector{spotter: s}, nil
}

func (s *fakeSpotter) Wake() { s.pending.Store(true) }

func (s *fakeSpotter) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

type fakeDetector struct {
	spotter  *fakeSpotter
	released bool
}

func (d *fakeDetector) FrameLength() int { return 160 }
func (d *fakeDetector) SampleRate() int  { return 16000 }

func (d *fakeDetector) Process(frame []int16) (int, error) {
	if len(frame) != 160 {
		return -1, errors.New("bad frame length")
	}
	if d.spotter.pending.CompareAndSwap(true, false) {
		return 0, nil
	}
	return -1, nil
}

func (d *fakeDetector) Release() error {
	d.spotter.mu.Lock()
	defer d.spotter.mu.Unlock()
	if !d.released {
		d.released = true
		d.spotter.live--
		d.spotter.released++
	}
	return nil
}

// fakeSTT replays one script per stream once audio arrives. An empty script
// never produces a result.
type fakeSTT struct {
	mu      sync.Mutex
	scripts [][]repositories.TranscriptEvent
	next    int
	initErr error
	configs []repositories.AudioConfig
}

func (f *fakeSTT) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.configs = append(f.configs, config)

	var script []repositories.TranscriptEvent
	if len(f.scripts) > 0 {
		script = f.scripts[f.next%len(f.scripts)]
		f.next++
	}
	return &fakeSTTStream{script: script, results: make(chan repositories.TranscriptEvent, len(script)+1)}, nil
}

type fakeSTTStream struct {
	mu      sync.Mutex
	script  []repositories.TranscriptEvent
	started bool
	closed  bool
	results chan repositories.TranscriptEvent
}

func (s *fakeSTTStream) Stream(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if s.started || len(s.script) == 0 {
		return nil
	}
	s.started = true
	for _, ev := range s.script {
		s.results <- ev
	}
	if last := s.script[len(s.script)-1]; last.IsFinal || last.Err != nil {
		close(s.results)
		s.closed = true
	}
	return nil
}

func (s *fakeSTTStream) Results() <-chan repositories.TranscriptEvent { return s.results }

func (s *fakeSTTStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.results)
	}
	return nil
}

func utterance(words ...string) []repositories.TranscriptEvent {
	var events []repositories.TranscriptEvent
	for i := range words {
		text := joinWords(words[:i+1])
		events = append(events, repositories.TranscriptEvent{Text: text, IsFinal: i == len(words)-1})
	}
	return events
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

// fakeLLM answers through a function and records every request
type fakeLLM struct {
	mu       sync.Mutex
	requests []repositories.ChatRequest
	reply    func(req repositories.ChatRequest) (repositories.ChatCompletion, error)
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, req repositories.ChatRequest) (repositories.ChatCompletion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply(req)
}

func (f *fakeLLM) calls() []repositories.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repositories.ChatRequest(nil), f.requests...)
}

func contentReply(content string) func(repositories.ChatRequest) (repositories.ChatCompletion, error) {
	return func(repositories.ChatRequest) (repositories.ChatCompletion, error) {
		return repositories.ChatCompletion{Content: content}, nil
	}
}

// fakeTool is a tool backed by a function
type fakeTool struct {
	name string
	call func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

func (t *fakeTool) Name() string                       { return t.name }
func (t *fakeTool) Description() string                { return "fake " + t.name }
func (t *fakeTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }

func (t *fakeTool) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.call(ctx, args)
}

type fakeTTS struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (repositories.SynthesizedAudio, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.err != nil {
		return repositories.SynthesizedAudio{}, f.err
	}
	return repositories.SynthesizedAudio{PCM: make([]byte, 320), SampleRate: 16000}, nil
}

func (f *fakeTTS) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// fakePlayer blocks for delay or until ctx is done
type fakePlayer struct {
	delay time.Duration
	err   error
	// linger keeps Play running after cancellation, like a process that
	// takes a moment to exit
	linger time.Duration

	plays     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (p *fakePlayer) Play(ctx context.Context, audio repositories.SynthesizedAudio) error {
	p.plays.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		peak := p.maxActive.Load()
		if n <= peak || p.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(p.delay):
		return p.err
	case <-ctx.Done():
		time.Sleep(p.linger)
		return ctx.Err()
	}
}

type fakeArchive struct {
	mu      sync.Mutex
	records []repositories.TurnRecord
}

func (a *fakeArchive) Record(ctx context.Context, record repositories.TurnRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

func (a *fakeArchive) Recent(ctx context.Context, limit int) ([]repositories.TurnRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]repositories.TurnRecord(nil), a.records...), nil
}

func (a *fakeArchive) all() []repositories.TurnRecord {
	records, _ := a.Recent(context.Background(), 0)
	return records
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *recordingNotifier) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.items...)
}

func (r *recordingNotifier) types() []domain.NotificationType {
	var out []domain.NotificationType
	for _, n := range r.all() {
		out = append(out, n.Type)
	}
	return out
}

func (r *recordingNotifier) statuses() []domain.StatusPayload {
	var out []domain.StatusPayload
	for _, n := range r.all() {
		if p, ok := n.Payload.(domain.StatusPayload); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *recordingNotifier) lastStatus() domain.StatusPayload {
	statuses := r.statuses()
	if len(statuses) == 0 {
		return domain.StatusPayload{}
	}
	return statuses[len(statuses)-1]
}
