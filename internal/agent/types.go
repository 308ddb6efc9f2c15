package agent

import (
	"errors"
	"fmt"
	"time"
)

const DefaultMaxLoops = 10

// ErrRunInProgress is returned when Run is called on an Orchestrator that
// is already running.
var ErrRunInProgress = errors.New("orchestrator run already in progress")

// State is a loop controller state.
type State int

const (
	StateStart State = iota
	StateAwaitingModel
	StateGotFinal
	StateGotToolCall
	StateInvoking
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateGotFinal:
		return "got_final"
	case StateGotToolCall:
		return "got_tool_call"
	case StateInvoking:
		return "invoking"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateGotFinal || s == StateExhausted || s == StateFailed
}

// OutcomeKind is the terminal result of a run.
type OutcomeKind int

const (
	OutcomeAnswer OutcomeKind = iota
	OutcomeExhausted
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAnswer:
		return "answer"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// RunOutcome is what a run produced.
type RunOutcome struct {
	Kind OutcomeKind

	// Answer is the final answer text, set only for OutcomeAnswer.
	Answer string

	// Err is the failure cause, set only for OutcomeFailed.
	Err error

	// Iterations counts completion requests made. A run that exhausts its
	// budget made exactly MaxLoops of them.
	Iterations int

	// ToolCalls records every dispatched tool call, failed ones included.
	ToolCalls []ToolCallRecord

	// Transcript holds the entries recorded during the run.
	Transcript []string

	FinalState State
}

func (o *RunOutcome) IsAnswer() bool    { return o.Kind == OutcomeAnswer }
func (o *RunOutcome) IsExhausted() bool { return o.Kind == OutcomeExhausted }
func (o *RunOutcome) IsFailed() bool    { return o.Kind == OutcomeFailed }

// Error returns the failure cause, or nil when the run did not fail.
func (o *RunOutcome) Error() error {
	if o.Kind != OutcomeFailed {
		return nil
	}
	return o.Err
}

// ToolCallRecord records a single tool call and its result
type ToolCallRecord struct {
	ToolName string
	Input    string
	Result   string
	Err      error
	Duration time.Duration
}

// Step describes one model turn, reported to Options.StepHook.
type Step struct {
	Iteration int
	Prompt    string
	Output    string
	Action    *ParsedAction
	ToolCall  *ToolCallRecord
	State     State
}

// Options tunes an Orchestrator.
type Options struct {
	// MaxLoops bounds the number of completed tool cycles.
	// Default: 10
	MaxLoops int

	// StopSequences are forwarded to every completion request.
	StopSequences []string

	// MaxTranscriptChars bounds the transcript rendered into prompts.
	// Zero keeps the whole transcript.
	MaxTranscriptChars int

	// Now supplies the date shown in the prompt. Default: time.Now.
	Now func() time.Time

	// StepHook is called after every model turn and tool call.
	StepHook func(Step)
}

func (o Options) withDefaults() Options {
	if o.MaxLoops <= 0 {
		o.MaxLoops = DefaultMaxLoops
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
