package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/usetaskchat/taskchat/plugin/ai"
)

// ToolResult is the structured outcome of a tool execution. Domain failures
// (validation, not-found) land in Error with Success=false; handlers never
// return a Go error for those. Go errors are reserved for infrastructure
// failures such as storage being unavailable.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Tool is the interface for owner-scoped task tools. The owner id arrives
// out-of-band from the authenticated caller, never from the payload.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a description of what the tool does.
	Description() string

	// Parameters returns the JSON Schema for the tool's input parameters.
	Parameters() map[string]any

	// Run executes the tool with the given raw JSON input, scoped to owner.
	Run(ctx context.Context, ownerID int32, input json.RawMessage) (*ToolResult, error)
}

// Registry manages a collection of tools.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return errors.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.tools)
}

// Definitions returns the tool schemas in stable order for the model call.
func (r *Registry) Definitions() []ai.ToolDefinition {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]ai.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		defs = append(defs, ai.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return defs
}

// Dispatch invokes a tool by name with a raw argument payload. It always
// returns a result: unknown tools and infrastructure failures surface as
// per-tool error results so one failing call never aborts the turn.
func (r *Registry) Dispatch(ctx context.Context, ownerID int32, name string, arguments string) *ToolResult {
	tool, exists := r.tools[name]
	if !exists {
		return &ToolResult{Success: false, Error: "unknown tool: " + name}
	}

	result, err := tool.Run(ctx, ownerID, json.RawMessage(arguments))
	if err != nil {
		// Infrastructure failure. Full details stay in the server log;
		// the model only learns the operation failed.
		slog.Error("tool execution failed",
			slog.String("tool", name),
			slog.Int64("owner_id", int64(ownerID)),
			slog.String("error", err.Error()))
		return &ToolResult{Success: false, Error: "the operation failed, please try again"}
	}
	return result
}
