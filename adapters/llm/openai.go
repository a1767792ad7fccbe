package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig holds the settings for OpenAI compatible backends
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	MaxRetries      int
	RetryWait       time.Duration
}

// OpenAILLM implements LargeLanguageModel with the chat completions API
type OpenAILLM struct {
	client          *openai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	maxRetries      int
	retryWait       time.Duration
}

var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// NewOpenAILLM creates a client for config. BaseURL allows OpenAI compatible
// servers.
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default model", zap.String("model", model))
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}
	retryWait := config.RetryWait
	if retryWait == 0 {
		retryWait = defaultRetryWait
	}

	return &OpenAILLM{
		client:          openai.NewClientWithConfig(clientConfig),
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		maxRetries:      config.MaxRetries,
		retryWait:       retryWait,
	}, nil
}

func (o *OpenAILLM) Name() string {
	return "openai"
}

// Complete submits one round to the chat completions endpoint
func (o *OpenAILLM) Complete(ctx context.Context, req repositories.ChatRequest) (repositories.ChatCompletion, error) {
	messages, err := buildOpenAIMessages(req)
	if err != nil {
		return repositories.ChatCompletion{}, fmt.Errorf("%w: %w", domain.ErrBackend, err)
	}

	request := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   o.maxOutputTokens,
		Temperature: o.temperature,
		Tools:       toOpenAITools(req.Tools),
	}

	var response openai.ChatCompletionResponse
	err = doWithRetry(ctx, o.maxRetries, o.retryWait, o.logger, func() error {
		var err error
		response, err = o.client.CreateChatCompletion(ctx, request)
		if err != nil && !retryable(err) {
			return permanentError{err}
		}
		return err
	})
	if err != nil {
		o.logger.Error("Failed to create chat completion", zap.Error(err))
		return repositories.ChatCompletion{}, fmt.Errorf("%w: openai: %w", domain.ErrBackend, err)
	}

	return parseOpenAIResponse(response)
}

// retryable reports whether a failed request may succeed when repeated
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func buildOpenAIMessages(req repositories.ChatRequest) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+4)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == entities.MessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	if ex := req.Exchange; ex != nil {
		args, err := json.Marshal(ex.Call.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool arguments: %w", err)
		}
		result, err := json.Marshal(ex.Result.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool result: %w", err)
		}

		callID := ex.Call.ID
		if callID == "" {
			callID = "call_" + ex.Call.Name
		}
		messages = append(messages,
			openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   callID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      ex.Call.Name,
						Arguments: string(args),
					},
				}},
			},
			openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(result),
				Name:       ex.Result.Name,
				ToolCallID: callID,
			},
		)
	}

	return messages, nil
}

func toOpenAITools(specs []repositories.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return tools
}

func parseOpenAIResponse(response openai.ChatCompletionResponse) (repositories.ChatCompletion, error) {
	if len(response.Choices) == 0 {
		return repositories.ChatCompletion{}, fmt.Errorf("%w: openai returned no choices", domain.ErrBackend)
	}

	message := response.Choices[0].Message
	if len(message.ToolCalls) > 0 {
		call := message.ToolCalls[0]
		args := map[string]interface{}{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return repositories.ChatCompletion{}, fmt.Errorf("%w: malformed tool arguments: %w", domain.ErrBackend, err)
			}
		}
		return repositories.ChatCompletion{
			ToolCall: &repositories.ToolCall{
				ID:   call.ID,
				Name: call.Function.Name,
				Args: args,
			},
		}, nil
	}

	return repositories.ChatCompletion{Content: strings.TrimSpace(message.Content)}, nil
}
