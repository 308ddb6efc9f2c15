package persistence

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/MimeLyc/react-agent/internal/agent"
)

// RunRecord is one finished agent run.
type RunRecord struct {
	ID         string       `json:"id"`
	Question   string       `json:"question"`
	Language   language.Tag `json:"language"`
	Outcome    string       `json:"outcome"`
	Answer     string       `json:"answer,omitempty"`
	Error      string       `json:"error,omitempty"`
	Iterations int          `json:"iterations"`
	// ToolCallCount is kept even when ToolCalls is not loaded.
	ToolCallCount int              `json:"tool_call_count"`
	ToolCalls     []ToolCallRecord `json:"tool_calls,omitempty"`
	Transcript    []string         `json:"transcript,omitempty"`
	Duration      time.Duration    `json:"duration"`
	CreatedAt     time.Time        `json:"created_at"`
}

type ToolCallRecord struct {
	Tool     string        `json:"tool"`
	Input    string        `json:"input"`
	Result   string        `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// NewRunRecord converts an outcome to a record with a fresh ID.
func NewRunRecord(question string, outcome *agent.RunOutcome, started time.Time) RunRecord {
	rec := RunRecord{
		ID:            uuid.NewString(),
		Question:      question,
		Language:      DetectLanguage(question),
		Outcome:       outcome.Kind.String(),
		Answer:        outcome.Answer,
		Iterations:    outcome.Iterations,
		ToolCallCount: len(outcome.ToolCalls),
		Transcript:    outcome.Transcript,
		Duration:      time.Since(started),
		CreatedAt:     started.UTC(),
	}
	if err := outcome.Error(); err != nil {
		rec.Error = err.Error()
	}

	rec.ToolCalls = make([]ToolCallRecord, 0, len(outcome.ToolCalls))
	for _, call := range outcome.ToolCalls {
		tc := ToolCallRecord{
			Tool:     call.ToolName,
			Input:    call.Input,
			Result:   call.Result,
			Duration: call.Duration,
		}
		if call.Err != nil {
			tc.Error = call.Err.Error()
		}
		rec.ToolCalls = append(rec.ToolCalls, tc)
	}
	return rec
}
