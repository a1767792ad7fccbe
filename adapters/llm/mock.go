package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// MockLLM is a keyword driven backend for running without an API key. It
// requests tools the same way a real backend would.
type MockLLM struct{}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// NewMockLLM creates a new mock backend
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Name() string {
	return "mock"
}

var minutesPattern = regexp.MustCompile(`\s*(?:in\s+)?(\d+)\s*minutes?`)

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, req repositories.ChatRequest) (repositories.ChatCompletion, error) {
	if err := ctx.Err(); err != nil {
		return repositories.ChatCompletion{}, err
	}

	if req.Exchange != nil {
		return repositories.ChatCompletion{Content: describeToolResult(req.Exchange.Result)}, nil
	}

	message := strings.ToLower(req.Message)
	offered := make(map[string]bool, len(req.Tools))
	for _, spec := range req.Tools {
		offered[spec.Name] = true
	}

	call := func(name string, args map[string]interface{}) (repositories.ChatCompletion, error) {
		return repositories.ChatCompletion{ToolCall: &repositories.ToolCall{ID: "mock-" + name, Name: name, Args: args}}, nil
	}

	switch {
	case strings.Contains(message, "remind") && offered["setReminder"]:
		minutes := 1
		if match := minutesPattern.FindStringSubmatch(message); match != nil {
			minutes, _ = strconv.Atoi(match[1])
		}
		what := message
		if i := strings.Index(message, " to "); i >= 0 {
			what = message[i+4:]
		}
		what = strings.TrimSpace(minutesPattern.ReplaceAllString(what, ""))
		return call("setReminder", map[string]interface{}{"message": what, "minutes": float64(minutes)})
	case strings.Contains(message, "weather") && offered["getWeather"]:
		return call("getWeather", map[string]interface{}{})
	case strings.Contains(message, "time") && offered["getCurrentTime"]:
		return call("getCurrentTime", map[string]interface{}{})
	case strings.HasPrefix(message, "search") && offered["searchWeb"]:
		return call("searchWeb", map[string]interface{}{"query": strings.TrimSpace(strings.TrimPrefix(message, "search for"))})
	case message == "":
		return repositories.ChatCompletion{Content: "I didn't catch that."}, nil
	default:
		return repositories.ChatCompletion{Content: fmt.Sprintf("You said: %s", req.Message)}, nil
	}
}

func describeToolResult(result repositories.ToolResult) string {
	data, ok := result.Result.(map[string]interface{})
	if !ok {
		return fmt.Sprintf("Here is what I found: %v", result.Result)
	}
	if msg, ok := data["error"]; ok {
		return fmt.Sprintf("Sorry, %s failed: %v", result.Name, msg)
	}

	switch result.Name {
	case "getCurrentTime":
		return fmt.Sprintf("It's %v.", data["time"])
	case "getWeather":
		return fmt.Sprintf("It's %v degrees with %v in %v.", data["temperature"], data["description"], data["location"])
	case "setReminder":
		return fmt.Sprintf("Okay, I'll remind you to %v.", data["message"])
	case "searchWeb":
		switch results := data["results"].(type) {
		case []map[string]interface{}:
			if len(results) > 0 {
				return fmt.Sprintf("%v", results[0]["snippet"])
			}
		case []interface{}:
			if len(results) > 0 {
				if first, ok := results[0].(map[string]interface{}); ok {
					return fmt.Sprintf("%v", first["snippet"])
				}
			}
		}
		return "I couldn't find anything about that."
	default:
		return fmt.Sprintf("Here is what I found: %v", data)
	}
}
