// Package tools holds the functions the AI backend may call mid-conversation.
package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func stringArg(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("argument %q cannot be empty", key)
	}
	return s, nil
}

// numberArg accepts the numeric shapes the backends produce after JSON
// decoding. NaN and infinities are rejected.
func numberArg(args map[string]interface{}, key string) (float64, error) {
	var f float64
	switch v := args[key].(type) {
	case nil:
		return 0, fmt.Errorf("missing argument %q", key)
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a number", key)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a number", key)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("argument %q must be a finite number", key)
	}
	return f, nil
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
