package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/jensroth-git/unifiedai/llm"
	"github.com/jensroth-git/unifiedai/schema"
)

// ExecutionOptions is the mutable out-parameter handed to each tool
// execution. A tool signals "stop the conversation after this turn" by
// setting ForceStop during its own execution.
type ExecutionOptions struct {
	ForceStop bool
}

// ExecuteFunc runs a tool against decoded arguments.
type ExecuteFunc func(ctx context.Context, args map[string]any, opts *ExecutionOptions) (any, error)

// ToolDefinition describes one executable tool: its registry name, the
// description shown to the model, its typed parameter schema, and the
// execution function.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *schema.Type
	Execute     ExecuteFunc
}

// Spec returns the wire-facing tool spec for this definition.
func (d ToolDefinition) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

// Registry maps tool names to definitions. Keys are unique; registration
// order is irrelevant.
type Registry struct {
	tools map[string]ToolDefinition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolDefinition)}
}

// Register adds a tool definition. Duplicate names are an error.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Execute == nil {
		return fmt.Errorf("tool %q: execute function is required", def.Name)
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Lookup returns the definition for a name.
func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	def, ok := r.tools[name]
	return def, ok
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Specs returns wire-facing specs for all registered tools, sorted by
// name for deterministic request payloads.
func (r *Registry) Specs() []llm.ToolSpec {
	names := lo.Keys(r.tools)
	sort.Strings(names)
	return lo.Map(names, func(name string, _ int) llm.ToolSpec {
		return r.tools[name].Spec()
	})
}

// RegisterTyped registers a tool whose parameter schema is derived from
// the Go argument struct via reflection.
func RegisterTyped[T any](r *Registry, name, description string, fn func(ctx context.Context, args map[string]any, opts *ExecutionOptions) (any, error)) error {
	return r.Register(ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema.TypeOf[T](),
		Execute:     fn,
	})
}
