package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/observability"
)

// unfinishedToolReply is spoken when the backend asks for a second tool hop
const unfinishedToolReply = "I couldn't finish that request."

// ResponseEngineConfig controls what is sent to the backend
type ResponseEngineConfig struct {
	SystemPrompt  string
	HistoryWindow int
	ToolTimeout   time.Duration
}

// Response is the outcome of one request/response round-trip
type Response struct {
	Content  string
	ToolName string
}

// ResponseEngine turns a transcript into reply text, running at most one tool
// round-trip
type ResponseEngine struct {
	llm     repositories.LargeLanguageModel
	tools   *ToolRegistry
	config  ResponseEngineConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewResponseEngine(
	llm repositories.LargeLanguageModel,
	tools *ToolRegistry,
	config ResponseEngineConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ResponseEngine {
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = 10 * time.Second
		logger.Info("Using default tool timeout", zap.Duration("toolTimeout", config.ToolTimeout))
	}
	if config.HistoryWindow < 0 {
		config.HistoryWindow = 0
	}
	return &ResponseEngine{
		llm:     llm,
		tools:   tools,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// Respond sends message with a window of history. Only backend failures
// return an error, always wrapping domain.ErrBackend.
func (e *ResponseEngine) Respond(ctx context.Context, message string, history []entities.ConversationTurn) (Response, error) {
	req := repositories.ChatRequest{
		SystemPrompt: e.config.SystemPrompt,
		History:      window(history, e.config.HistoryWindow),
		Message:      message,
		Tools:        e.tools.Specs(),
	}

	completion, err := e.complete(ctx, req)
	if err != nil {
		return Response{}, err
	}

	if completion.ToolCall == nil {
		return finalResponse(completion.Content, "")
	}

	call := *completion.ToolCall
	e.logger.Info("Backend requested tool", zap.String("tool", call.Name), zap.Any("args", call.Args))

	toolCtx, cancel := context.WithTimeout(ctx, e.config.ToolTimeout)
	result := e.tools.Call(toolCtx, call)
	cancel()

	req.Exchange = &repositories.ToolExchange{Call: call, Result: result}
	completion, err = e.complete(ctx, req)
	if err != nil {
		return Response{}, err
	}

	if completion.ToolCall != nil {
		e.logger.Warn("Backend requested a second tool, not chaining",
			zap.String("tool", completion.ToolCall.Name))
		content := strings.TrimSpace(completion.Content)
		if content == "" {
			content = unfinishedToolReply
		}
		return Response{Content: content, ToolName: call.Name}, nil
	}

	return finalResponse(completion.Content, call.Name)
}

func (e *ResponseEngine) complete(ctx context.Context, req repositories.ChatRequest) (repositories.ChatCompletion, error) {
	completion, err := e.llm.Complete(ctx, req)
	if err == nil {
		return completion, nil
	}

	kind := "transport"
	if errors.Is(err, context.DeadlineExceeded) {
		kind = "timeout"
	}
	e.metrics.ObserveProviderError(e.llm.Name(), kind)

	if errors.Is(err, domain.ErrBackend) {
		return repositories.ChatCompletion{}, err
	}
	return repositories.ChatCompletion{}, fmt.Errorf("%w: %s: %w", domain.ErrBackend, e.llm.Name(), err)
}

func finalResponse(content, toolName string) (Response, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Response{}, fmt.Errorf("%w: empty reply", domain.ErrBackend)
	}
	return Response{Content: content, ToolName: toolName}, nil
}

func window(history []entities.ConversationTurn, n int) []entities.ConversationTurn {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]entities.ConversationTurn, len(history))
	copy(out, history)
	return out
}
