package repositories

import "context"

// Tool is a named function the backend may invoke mid-conversation
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the arguments
	Parameters() map[string]interface{}
	Call(ctx context.Context, args map[string]interface{}) (interface{}, error)
}
