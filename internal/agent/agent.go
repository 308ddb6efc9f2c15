package agent

import (
	"context"
)

// Agent defines the interface for an agent that answers questions
type Agent interface {
	// Run answers one question
	Run(ctx context.Context, question string) *RunOutcome

	// Close releases any resources held by the agent
	Close() error
}

// ReActAgent implements Agent with the ReAct loop. Every Run gets its own
// Orchestrator, so concurrent runs never share a transcript.
type ReActAgent struct {
	completer  Completer
	dispatcher Dispatcher
	opts       Options
}

// NewReActAgent creates a new ReAct agent
func NewReActAgent(completer Completer, dispatcher Dispatcher, opts Options) *ReActAgent {
	return &ReActAgent{
		completer:  completer,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
	}
}

// Run answers question with the agent's default options.
func (a *ReActAgent) Run(ctx context.Context, question string) *RunOutcome {
	return NewOrchestrator(a.completer, a.dispatcher, a.opts).Run(ctx, question)
}

// RunWithMaxLoops answers question with a per-call loop budget. A
// non-positive maxLoops falls back to the agent default.
func (a *ReActAgent) RunWithMaxLoops(ctx context.Context, question string, maxLoops int) *RunOutcome {
	opts := a.opts
	if maxLoops > 0 {
		opts.MaxLoops = maxLoops
	}
	return NewOrchestrator(a.completer, a.dispatcher, opts).Run(ctx, question)
}

// Close releases any resources held by the agent
func (a *ReActAgent) Close() error {
	// No resources to release currently
	return nil
}
