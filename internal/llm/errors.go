package llm

import (
	"errors"
	"fmt"
)

// CompletionError reports that a completion request failed or came back
// with a non-success status. StatusCode is 0 when no response was received.
type CompletionError struct {
	StatusCode int
	Cause      error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion failed (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("completion failed: %v", e.Cause)
}

func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// AsCompletionError wraps err in a CompletionError unless one is already in its chain.
func AsCompletionError(err error) error {
	if err == nil {
		return nil
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return err
	}
	return &CompletionError{Cause: err}
}
