package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

var clockSpec = repositories.ToolSpec{
	Name:        "getCurrentTime",
	Description: "Returns the current time",
	Parameters: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	},
}

var weatherSpec = repositories.ToolSpec{
	Name:        "getWeather",
	Description: "Returns the weather",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"location": map[string]interface{}{"type": "string", "description": "City name"},
			"units":    map[string]interface{}{"type": "string", "enum": []interface{}{"celsius", "fahrenheit"}},
		},
		"required": []string{"location"},
	},
}

func TestToGeminiSchema(t *testing.T) {
	schema := toGeminiSchema(weatherSpec.Parameters)

	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	require.Contains(t, schema.Properties, "location")
	assert.Equal(t, genai.TypeString, schema.Properties["location"].Type)
	assert.Equal(t, "City name", schema.Properties["location"].Description)
	assert.Equal(t, []string{"celsius", "fahrenheit"}, schema.Properties["units"].Enum)
	assert.Equal(t, []string{"location"}, schema.Required)

	assert.Nil(t, toGeminiSchema(nil))
}

func TestBuildGeminiContentsWithExchange(t *testing.T) {
	req := repositories.ChatRequest{
		History: []entities.ConversationTurn{
			{Role: entities.MessageRoleUser, Content: "hi"},
			{Role: entities.MessageRoleAssistant, Content: "hello"},
		},
		Message: "what time is it",
		Exchange: &repositories.ToolExchange{
			Call:   repositories.ToolCall{ID: "c1", Name: "getCurrentTime", Args: map[string]interface{}{}},
			Result: repositories.ToolResult{Name: "getCurrentTime", Result: map[string]interface{}{"time": "3:45 PM"}},
		},
	}

	contents := buildGeminiContents(req)
	require.Len(t, contents, 5)
	assert.Equal(t, string(genai.RoleUser), string(contents[0].Role))
	assert.Equal(t, string(genai.RoleModel), string(contents[1].Role))
	assert.Equal(t, "what time is it", contents[2].Parts[0].Text)

	require.NotNil(t, contents[3].Parts[0].FunctionCall)
	assert.Equal(t, "getCurrentTime", contents[3].Parts[0].FunctionCall.Name)
	assert.Equal(t, "c1", contents[3].Parts[0].FunctionCall.ID)

	require.NotNil(t, contents[4].Parts[0].FunctionResponse)
	assert.Equal(t, "getCurrentTime", contents[4].Parts[0].FunctionResponse.Name)
	assert.Contains(t, contents[4].Parts[0].FunctionResponse.Response, "result")
}

func TestParseGeminiResponse(t *testing.T) {
	text := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(" It's 3:45 PM ", genai.RoleModel),
	}}}
	completion, err := parseGeminiResponse(text)
	require.NoError(t, err)
	assert.Equal(t, "It's 3:45 PM", completion.Content)
	assert.Nil(t, completion.ToolCall)

	call := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromFunctionCall("getWeather", map[string]any{"location": "Oslo"}),
		}, genai.RoleModel),
	}}}
	completion, err = parseGeminiResponse(call)
	require.NoError(t, err)
	require.NotNil(t, completion.ToolCall)
	assert.Equal(t, "getWeather", completion.ToolCall.Name)
	assert.Equal(t, "Oslo", completion.ToolCall.Args["location"])

	_, err = parseGeminiResponse(&genai.GenerateContentResponse{})
	assert.True(t, errors.Is(err, domain.ErrBackend))
}

func openAIServer(t *testing.T, handler func(req openai.ChatCompletionRequest) (int, interface{})) (*httptest.Server, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req openai.ChatCompletionRequest
		require.NoError(t, json.Unmarshal(body, &req))

		status, resp := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestOpenAI(t *testing.T, url string, retries int) *OpenAILLM {
	llm, err := NewOpenAILLM(OpenAIConfig{
		APIKey:     "test",
		BaseURL:    url + "/v1",
		MaxRetries: retries,
		RetryWait:  time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return llm
}

func TestOpenAIToolRoundTrip(t *testing.T) {
	server, _ := openAIServer(t, func(req openai.ChatCompletionRequest) (int, interface{}) {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == openai.ChatMessageRoleTool {
			// second hop: tool result is fed back
			assert.Equal(t, "call_1", last.ToolCallID)
			assert.JSONEq(t, `{"time":"3:45 PM"}`, last.Content)
			return http.StatusOK, openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "It's 3:45 PM"},
			}}}
		}

		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "getCurrentTime", req.Tools[0].Function.Name)
		return http.StatusOK, openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       "call_1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "getCurrentTime", Arguments: "{}"},
				}},
			},
		}}}
	})

	llm := newTestOpenAI(t, server.URL, 0)
	req := repositories.ChatRequest{SystemPrompt: "be brief", Message: "what time is it", Tools: []repositories.ToolSpec{clockSpec}}

	first, err := llm.Complete(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, first.ToolCall)
	assert.Equal(t, "getCurrentTime", first.ToolCall.Name)

	req.Exchange = &repositories.ToolExchange{
		Call:   *first.ToolCall,
		Result: repositories.ToolResult{Name: "getCurrentTime", Result: map[string]interface{}{"time": "3:45 PM"}},
	}
	second, err := llm.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "It's 3:45 PM", second.Content)
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	server, calls := openAIServer(t, func(req openai.ChatCompletionRequest) (int, interface{}) {
		return http.StatusInternalServerError, map[string]interface{}{
			"error": map[string]interface{}{"message": "boom", "type": "server_error"},
		}
	})

	_, err := newTestOpenAI(t, server.URL, 2).Complete(context.Background(), repositories.ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBackend))
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestOpenAIDoesNotRetryAuthErrors(t *testing.T) {
	server, calls := openAIServer(t, func(req openai.ChatCompletionRequest) (int, interface{}) {
		return http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]interface{}{"message": "bad key", "type": "invalid_request_error"},
		}
	})

	_, err := newTestOpenAI(t, server.URL, 2).Complete(context.Background(), repositories.ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBackend))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func geminiServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Contains(t, r.URL.Path, ":generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestGemini(t *testing.T, url string, retries int) *GeminiLLM {
	llm, err := NewGeminiLLM(context.Background(), GeminiConfig{
		APIKey:     "test",
		BaseURL:    url,
		MaxRetries: retries,
		RetryWait:  time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return llm
}

func TestGeminiDoesNotRetryAuthErrors(t *testing.T) {
	server, calls := geminiServer(t, http.StatusUnauthorized,
		`{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`)

	_, err := newTestGemini(t, server.URL, 2).Complete(context.Background(), repositories.ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBackend))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestGeminiRetriesServerErrors(t *testing.T) {
	server, calls := geminiServer(t, http.StatusServiceUnavailable,
		`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)

	_, err := newTestGemini(t, server.URL, 2).Complete(context.Background(), repositories.ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBackend))
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestGeminiRetryable(t *testing.T) {
	assert.False(t, geminiRetryable(genai.APIError{Code: http.StatusForbidden}))
	assert.False(t, geminiRetryable(&genai.APIError{Code: http.StatusBadRequest}))
	assert.True(t, geminiRetryable(genai.APIError{Code: http.StatusTooManyRequests}))
	assert.True(t, geminiRetryable(genai.APIError{Code: http.StatusInternalServerError}))
	assert.True(t, geminiRetryable(errors.New("connection reset")))
}

func TestMockLLMUsesTools(t *testing.T) {
	mock := NewMockLLM()
	tools := []repositories.ToolSpec{clockSpec, weatherSpec, {Name: "setReminder"}}

	completion, err := mock.Complete(context.Background(), repositories.ChatRequest{Message: "What time is it", Tools: tools})
	require.NoError(t, err)
	require.NotNil(t, completion.ToolCall)
	assert.Equal(t, "getCurrentTime", completion.ToolCall.Name)

	completion, err = mock.Complete(context.Background(), repositories.ChatRequest{Message: "remind me to stretch in 5 minutes", Tools: tools})
	require.NoError(t, err)
	require.NotNil(t, completion.ToolCall)
	assert.Equal(t, "stretch", completion.ToolCall.Args["message"])
	assert.Equal(t, 5.0, completion.ToolCall.Args["minutes"])

	for msg, want := range map[string]string{
		"remind me in 10 minutes to drink water": "drink water",
		"remind me to call mom in 1 minute":      "call mom",
		"remind me to stretch":                   "stretch",
	} {
		completion, err = mock.Complete(context.Background(), repositories.ChatRequest{Message: msg, Tools: tools})
		require.NoError(t, err)
		require.NotNil(t, completion.ToolCall, msg)
		assert.Equal(t, want, completion.ToolCall.Args["message"], msg)
	}

	completion, err = mock.Complete(context.Background(), repositories.ChatRequest{
		Message: "what time is it",
		Exchange: &repositories.ToolExchange{
			Call:   repositories.ToolCall{Name: "getCurrentTime"},
			Result: repositories.ToolResult{Name: "getCurrentTime", Result: map[string]interface{}{"time": "3:45 PM"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "It's 3:45 PM.", completion.Content)

	completion, err = mock.Complete(context.Background(), repositories.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "You said: hello", completion.Content)
}

func TestDoWithRetryStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := doWithRetry(ctx, 5, 50*time.Millisecond, zaptest.NewLogger(t), func() error {
		attempts++
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
