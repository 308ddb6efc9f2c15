package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry manages available tools for the agent.
// Registration order is preserved; it is the order tools are shown to the model.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry
// Returns an error if a tool with the same name already exists
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for static wiring; it panics on a duplicate name.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			panic(err)
		}
	}
	return r
}

// Get retrieves a tool by exact, case-sensitive name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Tools returns the registered tools in registration order
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ret := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		ret = append(ret, r.tools[name])
	}
	return ret
}

// Names returns all registered tool names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke dispatches input to the named tool.
// An absent name yields *UnknownToolError; a tool failure is returned as
// *ToolError with the original cause preserved. Failures are not retried here.
func (r *Registry) Invoke(ctx context.Context, name, input string) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", &UnknownToolError{Name: name}
	}

	out, err := tool.Invoke(ctx, input)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return "", err
		}
		return "", &ToolError{Tool: name, Cause: err}
	}
	return out, nil
}
