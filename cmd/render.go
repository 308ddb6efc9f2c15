package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MimeLyc/react-agent/internal/agent"
	"github.com/MimeLyc/react-agent/internal/persistence"
	"github.com/MimeLyc/react-agent/internal/service"
)

const responseBanner = "Response >>>>>>>"

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	answerStyle = lipgloss.NewStyle()
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// printOutcome writes the banner and the result of a run.
func printOutcome(w io.Writer, outcome *agent.RunOutcome) {
	fmt.Fprintln(w, bannerStyle.Render(responseBanner))
	switch {
	case outcome.IsAnswer():
		fmt.Fprintln(w, answerStyle.Render(outcome.Answer))
	case outcome.IsExhausted():
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("No answer after %d iterations.", outcome.Iterations)))
	default:
		kind := service.Classify(outcome.Err)
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Failed: %v", outcome.Err)))
		fmt.Fprintln(w, dimStyle.Render(service.Advice(kind)))
	}
}

// verboseHook prints the first prompt and every reasoning cycle.
func verboseHook(w io.Writer) func(agent.Step) {
	return func(step agent.Step) {
		if step.Iteration == 1 && step.ToolCall == nil && step.Prompt != "" {
			fmt.Fprintln(w, stepStyle.Render("Prompt:"))
			fmt.Fprintln(w, dimStyle.Render(step.Prompt))
		}
		switch {
		case step.ToolCall != nil:
			result := step.ToolCall.Result
			if step.ToolCall.Err != nil {
				result = "error: " + step.ToolCall.Err.Error()
			}
			fmt.Fprintln(w, stepStyle.Render(fmt.Sprintf("[%d] %s(%s) %s", step.Iteration, step.ToolCall.ToolName, step.ToolCall.Input, step.ToolCall.Duration)))
			fmt.Fprintln(w, dimStyle.Render(result))
		case step.Output != "":
			fmt.Fprintln(w, stepStyle.Render(fmt.Sprintf("[%d] %s", step.Iteration, step.State)))
			fmt.Fprintln(w, dimStyle.Render(step.Output))
		}
	}
}

// printRuns writes one line per run, newest first.
func printRuns(w io.Writer, runs []persistence.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, run := range runs {
		summary := run.Answer
		if summary == "" {
			summary = run.Error
		}
		fmt.Fprintf(w, "%s  %s  %-9s %2d it  %s\n",
			dimStyle.Render(run.CreatedAt.Local().Format("2006-01-02 15:04")),
			run.ID,
			run.Outcome,
			run.Iterations,
			truncate(run.Question, 60),
		)
		if summary != "" {
			fmt.Fprintln(w, "    "+dimStyle.Render(truncate(oneLine(summary), 100)))
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
