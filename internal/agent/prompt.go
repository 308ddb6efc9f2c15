package agent

import (
	"strings"
	"time"

	"github.com/MimeLyc/react-agent/internal/tools"
)

const promptTemplate = "Today is {today} and you can use tools to get new information. " +
	"Answer the question as best as you can using the following tools: \n" +
	`{tool_description}
Use the following format:
Question: the input question you must answer
Thought: comment on what you want to do next
Action: the action to take, exactly one element of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation repeats N times, use it until you are sure of the answer)
Thought: I now know the final answer
Final Answer: your final answer to the original input question
Begin!
Question: {question}
Thought: {previous_responses}
`

// RenderPrompt fills the ReAct template for one model call.
//
// Placeholders are substituted in a single pass, so braces inside the
// question, tool descriptions or transcript are never re-expanded.
func RenderPrompt(question string, catalog []tools.Tool, transcript []string, now time.Time) string {
	descriptions := make([]string, 0, len(catalog))
	names := make([]string, 0, len(catalog))
	for _, tool := range catalog {
		descriptions = append(descriptions, tool.Name()+": "+tool.Description())
		names = append(names, tool.Name())
	}

	r := strings.NewReplacer(
		"{today}", now.Format(time.DateOnly),
		"{tool_description}", strings.Join(descriptions, "\n"),
		"{tool_names}", strings.Join(names, ","),
		"{question}", question,
		"{previous_responses}", strings.Join(transcript, "\n"),
	)
	return r.Replace(promptTemplate)
}
