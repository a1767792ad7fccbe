package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/observability"
)

func newTestEngine(t *testing.T, llm *fakeLLM, tools ...repositories.Tool) *ResponseEngine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics(nil)
	registry := NewToolRegistry(metrics, logger)
	require.NoError(t, registry.Register(tools...))
	return NewResponseEngine(llm, registry, ResponseEngineConfig{
		SystemPrompt:  "system",
		HistoryWindow: 6,
		ToolTimeout:   50 * time.Millisecond,
	}, metrics, logger)
}

// callThen requests tool name on the first call and echoes the tool result
// on the second
func callThen(name string) func(req repositories.ChatRequest) (repositories.ChatCompletion, error) {
	return func(req repositories.ChatRequest) (repositories.ChatCompletion, error) {
		if req.Exchange == nil {
			return repositories.ChatCompletion{ToolCall: &repositories.ToolCall{Name: name, Args: map[string]interface{}{"x": 1.0}}}, nil
		}
		return repositories.ChatCompletion{Content: fmt.Sprintf("result: %v", req.Exchange.Result.Result)}, nil
	}
}

func TestResponseEngineDirectReply(t *testing.T) {
	llm := &fakeLLM{reply: contentReply("  Hi!  ")}
	engine := newTestEngine(t, llm)

	response, err := engine.Respond(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, Response{Content: "Hi!"}, response)

	calls := llm.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "system", calls[0].SystemPrompt)
	assert.Equal(t, "hello", calls[0].Message)
}

func TestResponseEngineSendsHistoryWindow(t *testing.T) {
	llm := &fakeLLM{reply: contentReply("ok")}
	engine := newTestEngine(t, llm)

	history := entities.NewConversationHistory(10)
	for i := 0; i < 5; i++ {
		history.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	_, err := engine.Respond(context.Background(), "next", history.Turns())
	require.NoError(t, err)

	sent := llm.calls()[0].History
	require.Len(t, sent, 6)
	assert.Equal(t, "q2", sent[0].Content)
	assert.Equal(t, "a4", sent[5].Content)
}

func TestResponseEngineToolRoundTrip(t *testing.T) {
	llm := &fakeLLM{reply: callThen("echo")}
	engine := newTestEngine(t, llm, &fakeTool{name: "echo", call: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"echo": args["x"]}, nil
	}})

	response, err := engine.Respond(context.Background(), "echo please", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo", response.ToolName)
	assert.Equal(t, "result: map[echo:1]", response.Content)

	calls := llm.calls()
	require.Len(t, calls, 2)
	require.NotNil(t, calls[1].Exchange)
	assert.Equal(t, "echo", calls[1].Exchange.Call.Name)
	assert.Equal(t, "echo please", calls[1].Message)
	assert.NotEmpty(t, calls[1].Tools)
}

func TestResponseEngineToolFailuresBecomeData(t *testing.T) {
	cases := []struct {
		name    string
		tool    repositories.Tool
		request string
		want    string
	}{
		{
			name: "error",
			tool: &fakeTool{name: "broken", call: func(context.Context, map[string]interface{}) (interface{}, error) {
				return nil, errors.New("service unavailable")
			}},
			request: "broken",
			want:    "service unavailable",
		},
		{
			name: "panic",
			tool: &fakeTool{name: "broken", call: func(context.Context, map[string]interface{}) (interface{}, error) {
				panic("nil map")
			}},
			request: "broken",
			want:    "tool error: broken panicked: nil map",
		},
		{
			name: "timeout",
			tool: &fakeTool{name: "broken", call: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}},
			request: "broken",
			want:    context.DeadlineExceeded.Error(),
		},
		{
			name:    "unknown",
			tool:    &fakeTool{name: "known", call: nil},
			request: "missing",
			want:    "unknown tool: missing",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &fakeLLM{reply: callThen(tc.request)}
			engine := newTestEngine(t, llm, tc.tool)

			response, err := engine.Respond(context.Background(), "go", nil)
			require.NoError(t, err, "tool failures never fail the round-trip")
			assert.NotEmpty(t, response.Content)

			calls := llm.calls()
			require.Len(t, calls, 2)
			assert.Equal(t, map[string]interface{}{"error": tc.want}, calls[1].Exchange.Result.Result)
		})
	}
}

func TestResponseEngineDoesNotChainTools(t *testing.T) {
	tool := &fakeTool{name: "echo", call: func(context.Context, map[string]interface{}) (interface{}, error) {
		return "ok", nil
	}}

	t.Run("without content", func(t *testing.T) {
		llm := &fakeLLM{reply: func(req repositories.ChatRequest) (repositories.ChatCompletion, error) {
			return repositories.ChatCompletion{ToolCall: &repositories.ToolCall{Name: "echo"}}, nil
		}}
		engine := newTestEngine(t, llm, tool)

		response, err := engine.Respond(context.Background(), "loop", nil)
		require.NoError(t, err)
		assert.Equal(t, unfinishedToolReply, response.Content)
		assert.Len(t, llm.calls(), 2)
	})

	t.Run("with content", func(t *testing.T) {
		llm := &fakeLLM{reply: func(req repositories.ChatRequest) (repositories.ChatCompletion, error) {
			return repositories.ChatCompletion{Content: "Partial answer.", ToolCall: &repositories.ToolCall{Name: "echo"}}, nil
		}}
		engine := newTestEngine(t, llm, tool)

		response, err := engine.Respond(context.Background(), "loop", nil)
		require.NoError(t, err)
		assert.Equal(t, "Partial answer.", response.Content)
	})
}

func TestResponseEngineBackendErrors(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		llm := &fakeLLM{reply: func(repositories.ChatRequest) (repositories.ChatCompletion, error) {
			return repositories.ChatCompletion{}, errors.New("dial tcp: refused")
		}}
		_, err := newTestEngine(t, llm).Respond(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, domain.ErrBackend)
	})

	t.Run("already classified", func(t *testing.T) {
		cause := fmt.Errorf("%w: 401", domain.ErrBackend)
		llm := &fakeLLM{reply: func(repositories.ChatRequest) (repositories.ChatCompletion, error) {
			return repositories.ChatCompletion{}, cause
		}}
		_, err := newTestEngine(t, llm).Respond(context.Background(), "hi", nil)
		assert.Equal(t, cause, err)
	})

	t.Run("empty reply", func(t *testing.T) {
		llm := &fakeLLM{reply: contentReply("   ")}
		_, err := newTestEngine(t, llm).Respond(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, domain.ErrBackend)
	})

	t.Run("second call fails", func(t *testing.T) {
		llm := &fakeLLM{reply: func(req repositories.ChatRequest) (repositories.ChatCompletion, error) {
			if req.Exchange == nil {
				return repositories.ChatCompletion{ToolCall: &repositories.ToolCall{Name: "missing"}}, nil
			}
			return repositories.ChatCompletion{}, errors.New("503")
		}}
		_, err := newTestEngine(t, llm).Respond(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, domain.ErrBackend)
	})
}

func TestToolRegistry(t *testing.T) {
	logger := zaptest.NewLogger(t)
	registry := NewToolRegistry(nil, logger)

	noop := func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil }
	require.NoError(t, registry.Register(&fakeTool{name: "b", call: noop}, &fakeTool{name: "a", call: noop}))
	assert.Error(t, registry.Register(&fakeTool{name: "a", call: noop}), "duplicate names are rejected")
	assert.Error(t, registry.Register(&fakeTool{name: "", call: noop}))

	specs := registry.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "fake a", specs[0].Description)

	result := registry.Call(context.Background(), repositories.ToolCall{Name: "a"})
	assert.Equal(t, repositories.ToolResult{Name: "a"}, result)
}
