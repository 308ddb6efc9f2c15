package tools

import (
	"fmt"
)

// UnknownToolError is returned when a requested name is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

// ToolError wraps a failure raised by a registered tool's own invocation.
type ToolError struct {
	Tool  string
	Cause error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Cause)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}
