package tools

import (
	"context"
)

// Tool defines the interface for tools that can be called by the agent.
// Implementations must be safe to call from one goroutine at a time per run;
// the registry never invokes two tools of the same run concurrently.
type Tool interface {
	// Name returns the unique name of the tool. The model refers to the
	// tool by this exact string.
	Name() string

	// Description returns a model-facing description of what the tool does
	// and what input it expects.
	Description() string

	// Invoke runs the tool on a free-text input and returns its observation.
	Invoke(ctx context.Context, input string) (string, error)
}
