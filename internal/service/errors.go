package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MimeLyc/react-agent/internal/agent"
	"github.com/MimeLyc/react-agent/internal/llm"
	"github.com/MimeLyc/react-agent/internal/tools"
	"github.com/MimeLyc/react-agent/pkg/log"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrCompletion
	ErrParse
	ErrUnknownTool
	ErrTool
	ErrCanceled
	ErrHistory
	ErrUnknown
)

// ErrHistoryDisabled is returned by history queries when no store is configured.
var ErrHistoryDisabled = errors.New("run history is disabled")

// Error is a service failure with a coarse type for callers that present it.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrCompletion:
		return "Completion"
	case ErrParse:
		return "Parse"
	case ErrUnknownTool:
		return "UnknownTool"
	case ErrTool:
		return "Tool"
	case ErrCanceled:
		return "Canceled"
	case ErrHistory:
		return "History"
	default:
		return "Unknown"
	}
}

// Classify maps an error from a run to its ErrorType. The agent's own error
// types take precedence over a wrapping *Error.
func Classify(err error) ErrorType {
	var (
		completionErr *llm.CompletionError
		parseErr      *agent.ParseError
		unknownErr    *tools.UnknownToolError
		toolErr       *tools.ToolError
		svcErr        *Error
	)
	switch {
	case err == nil:
		return ErrUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCanceled
	case errors.As(err, &unknownErr):
		return ErrUnknownTool
	case errors.As(err, &toolErr):
		return ErrTool
	case errors.As(err, &parseErr):
		return ErrParse
	case errors.As(err, &completionErr):
		return ErrCompletion
	case errors.As(err, &svcErr):
		return svcErr.Type
	default:
		return ErrUnknown
	}
}

// Advice returns a hint for the user about an error type.
func Advice(t ErrorType) string {
	switch t {
	case ErrValidation:
		return "Please provide a non-empty question"
	case ErrCompletion:
		return "Please check that the API key, URL and model are correct and that the LLM service is reachable"
	case ErrParse:
		return "The model did not follow the expected format; try a more capable model or rephrase the question"
	case ErrUnknownTool:
		return "The model asked for a tool that is not registered; check which tools are enabled"
	case ErrTool:
		return "A tool failed; check its API key and network access, or raise TOOL_MAX_RETRIES"
	case ErrCanceled:
		return "The run was canceled or timed out before it finished"
	case ErrHistory:
		return "Please check that DATA_DIR is writable"
	default:
		return "Please review the detailed error and the configuration"
	}
}

// LogError logs err with its type and advice.
func LogError(err error) {
	if err == nil {
		return
	}
	t := Classify(err)
	log.Error("Error Detail: %v\n advice: %s", err, Advice(t))
}

func IsErrorType(err error, errorType ErrorType) bool {
	return err != nil && Classify(err) == errorType
}
