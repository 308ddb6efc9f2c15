package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MimeLyc/react-agent/internal/agent"
	"github.com/MimeLyc/react-agent/internal/persistence"
	"github.com/MimeLyc/react-agent/pkg/log"
)

// Runner answers questions. *agent.ReActAgent satisfies it.
type Runner interface {
	RunWithMaxLoops(ctx context.Context, question string, maxLoops int) *agent.RunOutcome
}

// RunStore persists finished runs. *persistence.SQLiteStore satisfies it.
type RunStore interface {
	SaveRun(ctx context.Context, run persistence.RunRecord) error
	GetRun(ctx context.Context, id string) (persistence.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]persistence.RunRecord, error)
}

// Result is one answered question.
type Result struct {
	Record  persistence.RunRecord
	Outcome *agent.RunOutcome
	// Saved is false when history is disabled or saving failed.
	Saved bool
}

// QAService runs questions through the agent and records them.
type QAService struct {
	runner Runner
	store  RunStore
}

// NewQAService creates a service. store may be nil to disable history.
func NewQAService(runner Runner, store RunStore) *QAService {
	return &QAService{
		runner: runner,
		store:  store,
	}
}

// HistoryEnabled reports whether runs are recorded.
func (s *QAService) HistoryEnabled() bool {
	return s.store != nil
}

// Ask runs question with a loop budget of maxLoops, or the agent default
// when maxLoops is not positive. A failed run is not an error: the
// returned Result carries the outcome. Errors are reserved for invalid
// input.
func (s *QAService) Ask(ctx context.Context, question string, maxLoops int) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, NewError(ErrValidation, "question is required")
	}

	log.Info("Answering question: %q", question)
	started := time.Now()
	outcome := s.runner.RunWithMaxLoops(ctx, question, maxLoops)
	record := persistence.NewRunRecord(question, outcome, started)

	switch outcome.Kind {
	case agent.OutcomeAnswer:
		log.Info("Run %s answered after %d iterations in %s", record.ID, outcome.Iterations, record.Duration)
	case agent.OutcomeExhausted:
		log.Warn("Run %s exhausted after %d iterations", record.ID, outcome.Iterations)
	default:
		LogError(outcome.Err)
	}

	result := &Result{Record: record, Outcome: outcome}
	if s.store == nil {
		return result, nil
	}

	// The run already happened; record it even if the caller went away.
	if err := s.store.SaveRun(context.WithoutCancel(ctx), record); err != nil {
		log.Warn("Failed to save run %s: %v", record.ID, err)
		return result, nil
	}
	result.Saved = true
	return result, nil
}

// History returns up to limit recent runs, newest first.
func (s *QAService) History(ctx context.Context, limit int) ([]persistence.RunRecord, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, NewErrorWithCause(ErrHistory, "failed to list runs", err)
	}
	return runs, nil
}

// Run returns one recorded run.
func (s *QAService) Run(ctx context.Context, id string) (persistence.RunRecord, error) {
	if s.store == nil {
		return persistence.RunRecord{}, ErrHistoryDisabled
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.RunRecord{}, err
		}
		return persistence.RunRecord{}, NewErrorWithCause(ErrHistory, "failed to load run", err).WithContext("id", id)
	}
	return run, nil
}
