package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput_FinalAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "simple", raw: "I now know the final answer\nFinal Answer: 42", want: "42"},
		{name: "trims whitespace", raw: "Final Answer:   Paris \n", want: "Paris"},
		{name: "last occurrence wins", raw: "Final Answer: A\nFinal Answer: B", want: "B"},
		{name: "wins over action", raw: "Action: search\nAction Input: x\nFinal Answer: done", want: "done"},
		{name: "multiline answer", raw: "Final Answer: line one\nline two", want: "line one\nline two"},
		{name: "empty answer", raw: "Final Answer:", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseOutput(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, ActionFinalAnswer, got.Kind)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestParseOutput_ToolCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantTool  string
		wantInput string
	}{
		{
			name:      "plain",
			raw:       "I should look it up\nAction: search\nAction Input: rust ownership",
			wantTool:  "search",
			wantInput: "rust ownership",
		},
		{
			name:      "bracketed name",
			raw:       "Action: [search]\nAction Input: rust ownership",
			wantTool:  "search",
			wantInput: "rust ownership",
		},
		{
			name:      "double brackets keep inner pair",
			raw:       "Action: [[search]]\nAction Input: q",
			wantTool:  "[search]",
			wantInput: "q",
		},
		{
			name:      "opening bracket only",
			raw:       "Action: [search\nAction Input: q",
			wantTool:  "search",
			wantInput: "q",
		},
		{
			name:      "closing bracket only",
			raw:       "Action: search]\nAction Input: q",
			wantTool:  "search",
			wantInput: "q",
		},
		{
			name:      "space after closing bracket",
			raw:       "Action: [search] \nAction Input: foo",
			wantTool:  "search",
			wantInput: "foo",
		},
		{
			name:      "space before opening bracket",
			raw:       "Action:  [search]\nAction Input: foo",
			wantTool:  "search",
			wantInput: "foo",
		},
		{
			name:      "spaces inside brackets",
			raw:       "Action: [ search ]\nAction Input: foo",
			wantTool:  "search",
			wantInput: "foo",
		},
		{
			name:      "no space after colon",
			raw:       "Action:search\nAction Input: foo",
			wantTool:  "search",
			wantInput: "foo",
		},
		{
			name:      "name with spaces",
			raw:       "Action: hacker news search\nAction Input: golang generics",
			wantTool:  "hacker news search",
			wantInput: "golang generics",
		},
		{
			name:      "blank lines between",
			raw:       "Action: search\n\n\nAction Input: q",
			wantTool:  "search",
			wantInput: "q",
		},
		{
			name:      "multiline input",
			raw:       "Action: search\nAction Input: {\n  \"query\": \"go\"\n}",
			wantTool:  "search",
			wantInput: "{\n  \"query\": \"go\"\n}",
		},
		{
			name:      "trailing whitespace trimmed",
			raw:       "Action:  search  \nAction Input:   q  \n",
			wantTool:  "search",
			wantInput: "q",
		},
		{
			name:      "hallucinated observation dropped",
			raw:       "Action: search\nAction Input: q\nObservation: made up\nThought: more",
			wantTool:  "search",
			wantInput: "q",
		},
		{
			name:      "next thought ends input",
			raw:       "Action: search\nAction Input: foo\nThought: I should wait",
			wantTool:  "search",
			wantInput: "foo",
		},
		{
			name:      "next action ends input",
			raw:       "Action: search\nAction Input: foo\nAction: other\nAction Input: bar",
			wantTool:  "search",
			wantInput: "foo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseOutput(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, ActionToolCall, got.Kind)
			assert.Equal(t, tt.wantTool, got.Tool)
			assert.Equal(t, tt.wantInput, got.Input)
		})
	}
}

func TestParseOutput_Log(t *testing.T) {
	t.Parallel()

	got, err := ParseOutput("Thought: look up\nAction: search\nAction Input: q\nObservation: fake")
	require.NoError(t, err)
	assert.Equal(t, "Thought: look up\nAction: search\nAction Input: q", got.Log)

	got, err = ParseOutput("Action: search\nAction Input: q\n")
	require.NoError(t, err)
	assert.Equal(t, "Action: search\nAction Input: q", got.Log)

	got, err = ParseOutput("Action: search\nAction Input: q \t\nThought: now answer\nFinal")
	require.NoError(t, err)
	assert.Equal(t, "Action: search\nAction Input: q", got.Log)
}

func TestParseOutput_Unparseable(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"I am not sure what to do.",
		"Action: search",
		"Action Input: q",
		"Action:\nAction Input: q",
		"Action: []\nAction Input: q",
		"final answer: lowercase does not count",
	}

	for _, raw := range inputs {
		assert.NotPanics(t, func() {
			_, err := ParseOutput(raw)
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, raw, parseErr.Raw)
		})
	}
}
