package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultTemperature = 0.7
	defaultMaxTokens   = 150
)

// GeminiConfig holds the settings for the Gemini backend
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	MaxRetries      int
	RetryWait       time.Duration
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	maxRetries      int
	retryWait       time.Duration
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	retryWait := config.RetryWait
	if retryWait == 0 {
		retryWait = defaultRetryWait
	}

	return &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		maxRetries:      config.MaxRetries,
		retryWait:       retryWait,
	}, nil
}

func (g *GeminiLLM) Name() string {
	return "gemini"
}

// Complete submits one round to Gemini
func (g *GeminiLLM) Complete(ctx context.Context, req repositories.ChatRequest) (repositories.ChatCompletion, error) {
	contents := buildGeminiContents(req)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiDeclarations(req.Tools)}}
	}

	var response *genai.GenerateContentResponse
	err := doWithRetry(ctx, g.maxRetries, g.retryWait, g.logger, func() error {
		var err error
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil && !geminiRetryable(err) {
			return permanentError{err}
		}
		return err
	})
	if err != nil {
		g.logger.Error("Failed to generate content", zap.Error(err))
		return repositories.ChatCompletion{}, fmt.Errorf("%w: gemini: %w", domain.ErrBackend, err)
	}

	completion, err := parseGeminiResponse(response)
	if err != nil {
		return repositories.ChatCompletion{}, err
	}

	g.logger.Debug("Gemini round completed",
		zap.Bool("toolCall", completion.ToolCall != nil),
		zap.Int("contentLength", len(completion.Content)))

	return completion, nil
}

// geminiRetryable reports whether a failed request may succeed when repeated.
// Only rate limiting and server errors qualify; transport errors are retried.
func geminiRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// buildGeminiContents converts history, the new message and an optional tool
// exchange into Gemini contents
func buildGeminiContents(req repositories.ChatRequest) []*genai.Content {
	contents := convertHistoryToGemini(req.History)
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	if ex := req.Exchange; ex != nil {
		call := genai.NewPartFromFunctionCall(ex.Call.Name, ex.Call.Args)
		call.FunctionCall.ID = ex.Call.ID
		contents = append(contents, genai.NewContentFromParts([]*genai.Part{call}, genai.RoleModel))

		response := genai.NewPartFromFunctionResponse(ex.Result.Name, map[string]any{"result": ex.Result.Result})
		response.FunctionResponse.ID = ex.Call.ID
		contents = append(contents, genai.NewContentFromParts([]*genai.Part{response}, genai.RoleUser))
	}

	return contents
}

func parseGeminiResponse(response *genai.GenerateContentResponse) (repositories.ChatCompletion, error) {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return repositories.ChatCompletion{}, fmt.Errorf("%w: gemini returned no candidates", domain.ErrBackend)
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			return repositories.ChatCompletion{
				ToolCall: &repositories.ToolCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				},
			}, nil
		}
		text.WriteString(part.Text)
	}

	return repositories.ChatCompletion{Content: strings.TrimSpace(text.String())}, nil
}
