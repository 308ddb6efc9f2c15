package llm

import (
	"fmt"
)

// Message represents a chat message
//
// Role: "system", "user", or "assistant"
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
// Compatible with OpenAI API format
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// ChatResponse represents a chat completion response
// Compatible with OpenAI API format
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int          `json:"index"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
}

// FinishReason explains why the model stopped generating.
type FinishReason string

const (
	// FinishStop means the API returned complete model output
	FinishStop FinishReason = "stop"
	// FinishLength means the output was cut by max_tokens or the context limit
	FinishLength FinishReason = "length"
	// FinishContentFilter means content was omitted by a content filter
	FinishContentFilter FinishReason = "content_filter"
	// FinishNull means the response is still in progress or incomplete
	FinishNull FinishReason = "null"
)

// Truncated reports whether the continuation is known to be incomplete.
func (r FinishReason) Truncated() bool {
	switch r {
	case FinishLength, FinishContentFilter, FinishNull:
		return true
	default:
		return false
	}
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Error represents an API error payload
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("LLM API Error: %s (type: %s, code: %s)", e.Message, e.Type, e.Code)
}

// ChatCompletionOptions represents options for chat completion
type ChatCompletionOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Stop         []string
}

// NewChatCompletionOptions creates options that defer to the client config.
// A negative temperature means "use the configured temperature".
func NewChatCompletionOptions() *ChatCompletionOptions {
	return &ChatCompletionOptions{
		SystemPrompt: "",
		MaxTokens:    0,
		Temperature:  -1,
	}
}

// WithSystemPrompt sets the system prompt
func (o *ChatCompletionOptions) WithSystemPrompt(prompt string) *ChatCompletionOptions {
	o.SystemPrompt = prompt
	return o
}

// WithMaxTokens sets the max tokens
func (o *ChatCompletionOptions) WithMaxTokens(maxTokens int) *ChatCompletionOptions {
	o.MaxTokens = maxTokens
	return o
}

// WithTemperature sets the temperature
func (o *ChatCompletionOptions) WithTemperature(temperature float64) *ChatCompletionOptions {
	o.Temperature = temperature
	return o
}

// WithStop sets the stop sequences forwarded to the model
func (o *ChatCompletionOptions) WithStop(stop ...string) *ChatCompletionOptions {
	o.Stop = append(o.Stop, stop...)
	return o
}
