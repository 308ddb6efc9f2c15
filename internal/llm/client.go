package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/react-agent/pkg/log"
)

// Client is a chat completions client for an OpenAI-compatible API.
// It keeps no state between calls and is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new LLM client with the given configuration
//
// Example:
//
//	client, err := llm.NewClient(&llm.Config{
//		APIKey:      apiKey,
//		APIURL:      "https://api.openai.com/v1",
//		Model:       "gpt-3.5-turbo",
//		MaxTokens:   1000,
//		Temperature: 0.7,
//		Timeout:     30,
//	})
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}

	return client, nil
}

// ChatCompletion creates a chat completion request to the configured LLM API
//
// Example:
//
//	messages := []llm.Message{
//		{Role: "user", Content: "Hello, how are you?"},
//	}
//	response, err := client.ChatCompletion(ctx, messages, nil)
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		systemMessage := Message{
			Role:    "system",
			Content: opts.SystemPrompt,
		}
		messages = append([]Message{systemMessage}, messages...)
	}

	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: c.getTemperature(opts),
		Stop:        opts.Stop,
	}

	response, err := c.makeRequest(ctx, http.MethodPost, "/chat/completions", request)
	if err != nil {
		return response, fmt.Errorf("chat completion failed: %w", err)
	}

	return response, nil
}

// SimpleChat sends one user prompt with an optional system prompt and
// returns the assistant's content.
func (c *Client) SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := []Message{
		{Role: "user", Content: prompt},
	}

	opts := NewChatCompletionOptions()
	if systemPrompt != "" {
		opts = opts.WithSystemPrompt(systemPrompt)
	}

	response, err := c.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return response.Choices[0].Message.Content, nil
}

// Complete sends prompt as a single user message and returns the generated
// continuation. Generation halts at any of the stop sequences.
// Every failure is reported as a *CompletionError.
func (c *Client) Complete(ctx context.Context, prompt string, stop []string) (string, error) {
	opts := NewChatCompletionOptions()
	if len(stop) > 0 {
		opts = opts.WithStop(stop...)
	}

	response, err := c.ChatCompletion(ctx, []Message{{Role: "user", Content: prompt}}, opts)
	if err != nil {
		return "", AsCompletionError(err)
	}
	if len(response.Choices) == 0 {
		return "", &CompletionError{Cause: fmt.Errorf("no choices in response")}
	}

	choice := response.Choices[0]
	if choice.FinishReason.Truncated() {
		log.Warn("Completion finished with reason %q, output may be incomplete", choice.FinishReason)
	}
	log.Debug("Completion usage: prompt=%d completion=%d total=%d",
		response.Usage.PromptTokens, response.Usage.CompletionTokens, response.Usage.TotalTokens)

	return choice.Message.Content, nil
}

// makeRequest makes a raw HTTP request to the configured LLM API
func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, &CompletionError{Cause: fmt.Errorf("request timed out: %w", err)}
		}
		return nil, &CompletionError{Cause: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CompletionError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to read response body: %w", err)}
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &CompletionError{
				StatusCode: resp.StatusCode,
				Cause:      fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody)),
			}
		}
		return nil, &CompletionError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to parse response: %w", err)}
	}

	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return &chatResponse, &CompletionError{StatusCode: resp.StatusCode, Cause: chatResponse.Error}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &chatResponse, &CompletionError{
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody)),
		}
	}

	return &chatResponse, nil
}

func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}
