package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
	"github.com/satriahrh/mirrorvoice/internal/observability"
)

// ToolRegistry maps backend-declared function names to tools
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]repositories.Tool
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewToolRegistry(metrics *observability.Metrics, logger *zap.Logger) *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]repositories.Tool),
		metrics: metrics,
		logger:  logger,
	}
}

// Register adds tools, rejecting duplicate names
func (r *ToolRegistry) Register(tools ...repositories.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range tools {
		name := tool.Name()
		if name == "" {
			return fmt.Errorf("tool name cannot be empty")
		}
		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool %q already registered", name)
		}
		r.tools[name] = tool
		r.logger.Info("Tool registered", zap.String("tool", name))
	}
	return nil
}

// Specs lists the declared functions sorted by name
func (r *ToolRegistry) Specs() []repositories.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]repositories.ToolSpec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, repositories.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Call invokes a tool and always produces a result the backend can read.
// Failures, including unknown names and panics, become {"error": message}.
func (r *ToolRegistry) Call(ctx context.Context, call repositories.ToolCall) repositories.ToolResult {
	result, err := r.invoke(ctx, call)
	if err != nil {
		r.logger.Warn("Tool call failed", zap.String("tool", call.Name), zap.Error(err))
		r.metrics.ObserveToolCall(call.Name, "error")
		return repositories.ToolResult{
			Name:   call.Name,
			Result: map[string]interface{}{"error": err.Error()},
		}
	}

	r.metrics.ObserveToolCall(call.Name, "ok")
	return repositories.ToolResult{Name: call.Name, Result: result}
}

func (r *ToolRegistry) invoke(ctx context.Context, call repositories.ToolCall) (result interface{}, err error) {
	r.mu.RLock()
	tool, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", call.Name)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s panicked: %v", domain.ErrTool, call.Name, p)
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	return tool.Call(ctx, args)
}
