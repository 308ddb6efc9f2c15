package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/react-agent/internal/llm"
	"github.com/MimeLyc/react-agent/internal/tools"
	"github.com/MimeLyc/react-agent/pkg/log"
)

// Completer produces the model's continuation of a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, stop []string) (string, error)
}

// Dispatcher lists the available tools and invokes them by name.
// *tools.Registry satisfies it.
type Dispatcher interface {
	Tools() []tools.Tool
	Invoke(ctx context.Context, name, input string) (string, error)
}

// Orchestrator drives one question through the ReAct loop.
// A single Orchestrator runs one question at a time.
type Orchestrator struct {
	completer  Completer
	dispatcher Dispatcher
	opts       Options
	running    atomic.Bool
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(completer Completer, dispatcher Dispatcher, opts Options) *Orchestrator {
	return &Orchestrator{
		completer:  completer,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
	}
}

// Run executes the agent loop until the model answers, the loop budget is
// spent, or a step fails. It never returns nil.
func (o *Orchestrator) Run(ctx context.Context, question string) *RunOutcome {
	if !o.running.CompareAndSwap(false, true) {
		return &RunOutcome{Kind: OutcomeFailed, Err: ErrRunInProgress, FinalState: StateFailed}
	}
	defer o.running.Store(false)

	r := &run{
		o:          o,
		question:   question,
		catalog:    o.dispatcher.Tools(),
		transcript: NewTranscript(o.opts.MaxTranscriptChars),
		outcome:    &RunOutcome{ToolCalls: make([]ToolCallRecord, 0)},
		state:      StateStart,
	}
	return r.loop(ctx)
}

// run is the mutable state of one Run call.
type run struct {
	o          *Orchestrator
	question   string
	catalog    []tools.Tool
	transcript *Transcript
	outcome    *RunOutcome
	state      State
	cycles     int
}

func (r *run) loop(ctx context.Context) *RunOutcome {
	opts := r.o.opts

	for {
		if err := ctx.Err(); err != nil {
			return r.fail(fmt.Errorf("run canceled after %d iterations: %w", r.outcome.Iterations, err))
		}

		r.state = StateAwaitingModel
		r.outcome.Iterations++
		prompt := RenderPrompt(r.question, r.catalog, r.transcript.Window(), opts.Now())
		if r.outcome.Iterations == 1 {
			log.Debug("Initial prompt:\n%s", prompt)
		}

		output, err := r.o.completer.Complete(ctx, prompt, opts.StopSequences)
		if err != nil {
			r.notify(Step{Prompt: prompt})
			return r.fail(fmt.Errorf("iteration %d: %w", r.outcome.Iterations, llm.AsCompletionError(err)))
		}
		log.Debug("Iteration %d model output:\n%s", r.outcome.Iterations, output)

		action, err := ParseOutput(output)
		if err != nil {
			r.notify(Step{Prompt: prompt, Output: output})
			return r.fail(fmt.Errorf("iteration %d: %w", r.outcome.Iterations, err))
		}

		if action.Kind == ActionFinalAnswer {
			r.state = StateGotFinal
			r.outcome.Kind = OutcomeAnswer
			r.outcome.Answer = action.Text
			r.notify(Step{Prompt: prompt, Output: output, Action: &action})
			log.Info("Answer found after %d iterations", r.outcome.Iterations)
			return r.finish()
		}

		r.state = StateGotToolCall
		r.notify(Step{Prompt: prompt, Output: output, Action: &action})

		record, err := r.invoke(ctx, action)
		if err != nil {
			return r.fail(fmt.Errorf("iteration %d: %w", r.outcome.Iterations, err))
		}

		r.transcript.Append(action.Log, record.Result)
		r.cycles++
		if r.cycles >= opts.MaxLoops {
			r.state = StateExhausted
			r.outcome.Kind = OutcomeExhausted
			log.Warn("Loop budget of %d exhausted without a final answer", opts.MaxLoops)
			return r.finish()
		}
	}
}

func (r *run) invoke(ctx context.Context, action ParsedAction) (*ToolCallRecord, error) {
	r.state = StateInvoking
	log.Debug("Dispatching %q with input %q", action.Tool, action.Input)

	start := time.Now()
	result, err := r.o.dispatcher.Invoke(ctx, action.Tool, action.Input)

	var unknown *tools.UnknownToolError
	if errors.As(err, &unknown) {
		return nil, err
	}
	log.Info("Called tool %q with input %q", action.Tool, action.Input)

	record := ToolCallRecord{
		ToolName: action.Tool,
		Input:    action.Input,
		Result:   result,
		Err:      err,
		Duration: time.Since(start),
	}
	r.outcome.ToolCalls = append(r.outcome.ToolCalls, record)
	r.notify(Step{Action: &action, ToolCall: &record})

	if err != nil {
		var toolErr *tools.ToolError
		if !errors.As(err, &toolErr) {
			err = &tools.ToolError{Tool: action.Tool, Cause: err}
		}
		return nil, err
	}
	log.Debug("Tool %q returned %d bytes in %s", action.Tool, len(result), record.Duration)
	return &record, nil
}

func (r *run) fail(err error) *RunOutcome {
	r.state = StateFailed
	r.outcome.Kind = OutcomeFailed
	r.outcome.Err = err
	log.Error("Agent run failed: %v", err)
	return r.finish()
}

func (r *run) finish() *RunOutcome {
	r.outcome.FinalState = r.state
	r.outcome.Transcript = r.transcript.Entries()
	return r.outcome
}

func (r *run) notify(step Step) {
	if r.o.opts.StepHook == nil {
		return
	}
	step.Iteration = r.outcome.Iterations
	step.State = r.state
	r.o.opts.StepHook(step)
}
