package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/react-agent/internal/agent"
	"github.com/MimeLyc/react-agent/internal/llm"
	"github.com/MimeLyc/react-agent/internal/persistence"
	"github.com/MimeLyc/react-agent/internal/tools"
)

type fakeRunner struct {
	outcome  *agent.RunOutcome
	calls    atomic.Int32
	maxLoops atomic.Int32
	block    chan struct{}
}

func (f *fakeRunner) RunWithMaxLoops(ctx context.Context, question string, maxLoops int) *agent.RunOutcome {
	f.calls.Add(1)
	f.maxLoops.Store(int32(maxLoops))
	if f.block != nil {
		<-f.block
	}
	return f.outcome
}

type failingStore struct{}

func (failingStore) SaveRun(context.Context, persistence.RunRecord) error {
	return errors.New("disk full")
}

func (failingStore) GetRun(context.Context, string) (persistence.RunRecord, error) {
	return persistence.RunRecord{}, errors.New("disk full")
}

func (failingStore) ListRuns(context.Context, int) ([]persistence.RunRecord, error) {
	return nil, errors.New("disk full")
}

func newStore(t *testing.T) *persistence.SQLiteStore {
	t.Helper()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "react-agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestQAService_AskRecordsRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: &agent.RunOutcome{
		Kind:       agent.OutcomeAnswer,
		Answer:     "Paris",
		Iterations: 1,
		ToolCalls:  []agent.ToolCallRecord{},
		FinalState: agent.StateGotFinal,
	}}
	store := newStore(t)
	svc := NewQAService(runner, store)

	result, err := svc.Ask(context.Background(), "  What is the capital of France?  ", 3)
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Equal(t, "Paris", result.Record.Answer)
	assert.Equal(t, "answer", result.Record.Outcome)
	assert.EqualValues(t, 3, runner.maxLoops.Load())

	got, err := svc.Run(context.Background(), result.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France?", got.Question)

	runs, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.Record.ID, runs[0].ID)
}

func TestQAService_AskValidation(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	svc := NewQAService(runner, nil)

	_, err := svc.Ask(context.Background(), "   ", 0)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrValidation))
	assert.Zero(t, runner.calls.Load())
}

func TestQAService_FailedRunIsNotAnError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: &agent.RunOutcome{
		Kind:       agent.OutcomeFailed,
		Err:        &agent.ParseError{Raw: "gibberish"},
		Iterations: 1,
		FinalState: agent.StateFailed,
	}}
	svc := NewQAService(runner, nil)

	result, err := svc.Ask(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.False(t, result.Saved)
	assert.True(t, result.Outcome.IsFailed())
	assert.Contains(t, result.Record.Error, "gibberish")
}

func TestQAService_SaveFailureKeepsResult(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: &agent.RunOutcome{Kind: agent.OutcomeExhausted, Iterations: 10}}
	svc := NewQAService(runner, failingStore{})

	result, err := svc.Ask(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.False(t, result.Saved)
	assert.True(t, result.Outcome.IsExhausted())

	_, err = svc.History(context.Background(), 5)
	assert.True(t, IsErrorType(err, ErrHistory))

	_, err = svc.Run(context.Background(), "id")
	assert.True(t, IsErrorType(err, ErrHistory))
}

func TestQAService_HistoryDisabled(t *testing.T) {
	t.Parallel()

	svc := NewQAService(&fakeRunner{}, nil)
	assert.False(t, svc.HistoryEnabled())

	_, err := svc.History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	_, err = svc.Run(context.Background(), "id")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestQAService_RunNotFound(t *testing.T) {
	t.Parallel()

	svc := NewQAService(&fakeRunner{}, newStore(t))

	_, err := svc.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "nil", err: nil, want: ErrUnknown},
		{name: "completion", err: fmt.Errorf("iteration 1: %w", &llm.CompletionError{StatusCode: 500}), want: ErrCompletion},
		{name: "parse", err: fmt.Errorf("iteration 2: %w", &agent.ParseError{Raw: "x"}), want: ErrParse},
		{name: "unknown tool", err: &tools.UnknownToolError{Name: "calc"}, want: ErrUnknownTool},
		{name: "tool", err: &tools.ToolError{Tool: "search", Cause: errors.New("boom")}, want: ErrTool},
		{name: "canceled", err: fmt.Errorf("run canceled: %w", context.Canceled), want: ErrCanceled},
		{name: "tool timeout", err: &tools.ToolError{Tool: "search", Cause: context.DeadlineExceeded}, want: ErrCanceled},
		{name: "service", err: NewError(ErrHistory, "x"), want: ErrHistory},
		{name: "other", err: errors.New("other"), want: ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
			assert.NotEmpty(t, Advice(tt.want))
		})
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	cause := errors.New("locked")
	err := NewErrorWithCause(ErrHistory, "failed to load run", cause).WithContext("id", "run-1")

	assert.Contains(t, err.Error(), "[History] failed to load run")
	assert.Contains(t, err.Error(), "id=run-1")
	assert.Contains(t, err.Error(), "cause: locked")
	assert.ErrorIs(t, err, cause)
}

func TestScheduledQuestion_TriggerSharesInFlightRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		outcome: &agent.RunOutcome{Kind: agent.OutcomeAnswer, Answer: "ok"},
		block:   make(chan struct{}),
	}
	var results atomic.Int32
	sq := NewScheduledQuestion(NewQAService(runner, nil), cron.New(), "*/5 * * * *", "What is new?", 2)
	sq.OnResult(func(*Result) { results.Add(1) })

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := sq.Trigger(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "ok", result.Record.Answer)
		}()
	}

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(runner.block)
	wg.Wait()

	assert.EqualValues(t, 1, runner.calls.Load())
	assert.EqualValues(t, 1, results.Load())
	assert.EqualValues(t, 2, runner.maxLoops.Load())
}

func TestScheduledQuestion_Schedule(t *testing.T) {
	t.Parallel()

	engine := cron.New()
	sq := NewScheduledQuestion(NewQAService(&fakeRunner{}, nil), engine, "0 * * * *", "q", 0)
	require.NoError(t, sq.Schedule(context.Background()))
	assert.Len(t, engine.Entries(), 1)

	bad := NewScheduledQuestion(NewQAService(&fakeRunner{}, nil), engine, "nope", "q", 0)
	require.Error(t, bad.Schedule(context.Background()))

	empty := NewScheduledQuestion(NewQAService(&fakeRunner{}, nil), engine, "0 * * * *", " ", 0)
	err := empty.Schedule(context.Background())
	assert.True(t, IsErrorType(err, ErrValidation))
}
