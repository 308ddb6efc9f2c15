package agent

import (
	"fmt"
	"regexp"
	"strings"
)

const finalAnswerMarker = "Final Answer:"

// inputEndMarkers end an action input. The model writes them when no stop
// sequence halted it after the input.
var inputEndMarkers = []string{"\nObservation:", "\nThought:", "\nAction:"}

var actionPattern = regexp.MustCompile(`Action:(.*?)\n*Action Input:\s*((?s:.*))`)

// ActionKind tags a ParsedAction.
type ActionKind int

const (
	ActionFinalAnswer ActionKind = iota
	ActionToolCall
)

func (k ActionKind) String() string {
	switch k {
	case ActionFinalAnswer:
		return "final_answer"
	case ActionToolCall:
		return "tool_call"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// ParsedAction is the model's decision for one step.
// Text is set for final answers, Tool and Input for tool calls.
type ParsedAction struct {
	Kind  ActionKind
	Text  string
	Tool  string
	Input string
	// Log is the part of the raw output the model committed to. It is what
	// gets recorded in the transcript.
	Log string
}

// ParseError reports model output that is neither a final answer nor a
// well-formed action.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse model output: %q", e.Raw)
}

// ParseOutput classifies raw model output.
func ParseOutput(raw string) (ParsedAction, error) {
	if idx := strings.LastIndex(raw, finalAnswerMarker); idx >= 0 {
		return ParsedAction{
			Kind: ActionFinalAnswer,
			Text: strings.TrimSpace(raw[idx+len(finalAnswerMarker):]),
			Log:  raw,
		}, nil
	}

	loc := actionPattern.FindStringSubmatchIndex(raw)
	if loc == nil {
		return ParsedAction{}, &ParseError{Raw: raw}
	}

	name := toolName(raw[loc[2]:loc[3]])
	if name == "" {
		return ParsedAction{}, &ParseError{Raw: raw}
	}
	input := raw[loc[4]:loc[5]]
	consumed := raw[:loc[5]]

	// Everything from a model-written Observation or next step on is discarded.
	if cut := firstMarker(input); cut >= 0 {
		consumed = raw[:loc[4]+cut]
		input = input[:cut]
	}

	return ParsedAction{
		Kind:  ActionToolCall,
		Tool:  name,
		Input: strings.TrimSpace(input),
		Log:   strings.TrimRight(consumed, " \t\r\n"),
	}, nil
}

// toolName strips surrounding space and at most one leading "[" and one
// trailing "]", independently.
func toolName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.TrimSpace(s)
}

func firstMarker(s string) int {
	cut := -1
	for _, m := range inputEndMarkers {
		if i := strings.Index(s, m); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	return cut
}
