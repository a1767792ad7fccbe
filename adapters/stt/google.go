package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const resultBufferSize = 16

// GoogleSpeechToText implements SpeechToText for Google Cloud. The client is
// created once and shared by every stream.
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the speech client. An empty credentialsFile
// falls back to application default credentials.
func NewGoogleSpeechToText(ctx context.Context, credentialsFile string, logger *zap.Logger) (*GoogleSpeechToText, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else {
		logger.Info("Using application default credentials for speech")
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying client
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTranscription, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := g.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to create streaming recognize: %w", domain.ErrTranscription, err)
	}

	// Send initial configuration
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(config.SampleRate),
					LanguageCode:               config.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to send streaming config: %w", domain.ErrTranscription, err)
	}

	s := &GoogleSpeechToTextStream{
		stream:  stream,
		ctx:     streamCtx,
		cancel:  cancel,
		results: make(chan repositories.TranscriptEvent, resultBufferSize),
		logger:  g.logger,
	}
	go s.receiveResults()

	return s, nil
}

// GoogleSpeechToTextStream is one recognition stream
type GoogleSpeechToTextStream struct {
	stream  speechpb.Speech_StreamingRecognizeClient
	ctx     context.Context
	cancel  context.CancelFunc
	results chan repositories.TranscriptEvent
	logger  *zap.Logger

	mu        sync.Mutex
	sendDone  bool
	closeOnce sync.Once
}

func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendDone {
		return nil
	}

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		if errors.Is(err, io.EOF) {
			// server already ended the utterance, Recv reports the outcome
			g.sendDone = true
			return nil
		}
		return fmt.Errorf("%w: failed to send audio data: %w", domain.ErrTranscription, err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) Results() <-chan repositories.TranscriptEvent {
	return g.results
}

// Close detaches the stream. Pending results are discarded. The context is
// cancelled before taking mu so a Send blocked on flow control returns.
func (g *GoogleSpeechToTextStream) Close() error {
	g.closeOnce.Do(func() {
		g.cancel()
		g.mu.Lock()
		if !g.sendDone {
			g.sendDone = true
			g.stream.CloseSend()
		}
		g.mu.Unlock()
	})
	return nil
}

func (g *GoogleSpeechToTextStream) receiveResults() {
	defer close(g.results)

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if g.ctx.Err() != nil {
				return
			}
			g.emit(repositories.TranscriptEvent{
				Err: fmt.Errorf("%w: failed to receive response: %w", domain.ErrTranscription, err),
			})
			return
		}

		if resp.SpeechEventType == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			// stop sending, the final result follows
			g.mu.Lock()
			if !g.sendDone {
				g.sendDone = true
				g.stream.CloseSend()
			}
			g.mu.Unlock()
		}

		event, ok := translateResponse(resp)
		if !ok {
			continue
		}
		if !g.emit(event) || event.IsFinal || event.Err != nil {
			return
		}
	}
}

func (g *GoogleSpeechToTextStream) emit(event repositories.TranscriptEvent) bool {
	select {
	case g.results <- event:
		return true
	case <-g.ctx.Done():
		return false
	}
}

// translateResponse maps a recognition response to a transcript event. ok is
// false when the response carries nothing to report.
func translateResponse(resp *speechpb.StreamingRecognizeResponse) (event repositories.TranscriptEvent, ok bool) {
	if resp.Error != nil && resp.Error.Code != 0 {
		return repositories.TranscriptEvent{
			Err: fmt.Errorf("%w: recognition failed: %s", domain.ErrTranscription, resp.Error.Message),
		}, true
	}

	var interim strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		transcript := result.Alternatives[0].Transcript
		if result.IsFinal {
			return repositories.TranscriptEvent{Text: strings.TrimSpace(transcript), IsFinal: true}, true
		}
		interim.WriteString(transcript)
	}

	text := strings.TrimSpace(interim.String())
	if text == "" {
		return repositories.TranscriptEvent{}, false
	}
	return repositories.TranscriptEvent{Text: text}, true
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "", "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
