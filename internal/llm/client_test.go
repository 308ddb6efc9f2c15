package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{
	"id": "test-id",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"message": {
			"role": "assistant",
			"content": "Hello! This is a test response."
		},
		"finish_reason": "stop"
	}],
	"usage": {
		"prompt_tokens": 10,
		"completion_tokens": 20,
		"total_tokens": 30
	}
}`

func testConfig(url string) *Config {
	return &Config{
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     30,
	}
}

func TestNewClient(t *testing.T) {
	config := testConfig("https://api.example.com/")

	client, err := NewClient(config)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, config, client.config)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)

	invalidConfig := &Config{} // Missing API key
	_, err = NewClient(invalidConfig)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: "API key"},
		{name: "missing url", mutate: func(c *Config) { c.APIURL = "" }, wantErr: "API URL"},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model"},
		{name: "zero max tokens", mutate: func(c *Config) { c.MaxTokens = 0 }, wantErr: "max tokens"},
		{name: "temperature too high", mutate: func(c *Config) { c.Temperature = 2.5 }, wantErr: "temperature"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("https://api.example.com")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigGetHeaders(t *testing.T) {
	cfg := testConfig("https://api.example.com")
	cfg.SiteURL = "https://example.com"
	cfg.AppName = "react-agent"

	headers := cfg.GetHeaders()
	assert.Equal(t, "Bearer test-key", headers["Authorization"])
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.Equal(t, "https://example.com", headers["HTTP-Referer"])
	assert.Equal(t, "react-agent", headers["X-Title"])
}

func TestClientWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	messages := []Message{
		{Role: "user", Content: "Hello, how are you?"},
	}

	response, err := client.ChatCompletion(context.Background(), messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "test-id", response.ID)
	assert.Equal(t, "test-model", response.Model)
	require.Len(t, response.Choices, 1)
	assert.Equal(t, "Hello! This is a test response.", response.Choices[0].Message.Content)
	assert.Equal(t, FinishStop, response.Choices[0].FinishReason)
	assert.Equal(t, 30, response.Usage.TotalTokens)
}

func TestClientErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{
			"error": {
				"message": "Invalid API key",
				"type": "authentication_error",
				"code": "401"
			}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	response, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	var ce *CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusUnauthorized, ce.StatusCode)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid API key", apiErr.Message)
	require.NotNil(t, response)
	assert.Equal(t, "Invalid API key", response.Error.Message)
}

func TestClientNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hi", nil)
	require.Error(t, err)

	var ce *CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusBadGateway, ce.StatusCode)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestSimpleChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "You are a helpful assistant", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.Replace(okResponse, "Hello! This is a test response.", "Simple chat response", 1)))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	response, err := client.SimpleChat(context.Background(), "Hello", "You are a helpful assistant")
	require.NoError(t, err)
	assert.Equal(t, "Simple chat response", response)
}

func TestComplete_ForwardsPromptAndStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 1000, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Equal(t, []string{"\nObservation:"}, req.Stop)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "the prompt", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "the prompt", []string{"\nObservation:"})
	require.NoError(t, err)
	assert.Equal(t, "Hello! This is a test response.", out)
}

func TestComplete_OmitsEmptyStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "stop")

		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "p", nil)
	require.NoError(t, err)
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "p", nil)
	var ce *CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "no choices")
}

func TestComplete_ReturnsTruncatedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"partial"},"finish_reason":"length"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "partial", out)
}

func TestComplete_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Complete(ctx, "p", nil)
	require.Error(t, err)
	var ce *CompletionError
	assert.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFinishReasonTruncated(t *testing.T) {
	assert.False(t, FinishStop.Truncated())
	assert.True(t, FinishLength.Truncated())
	assert.True(t, FinishContentFilter.Truncated())
	assert.True(t, FinishNull.Truncated())
	assert.False(t, FinishReason("tool_calls").Truncated())
}

func TestChatCompletionOptions(t *testing.T) {
	opts := NewChatCompletionOptions().
		WithSystemPrompt("sys").
		WithMaxTokens(42).
		WithTemperature(0.1).
		WithStop("a", "b")

	assert.Equal(t, "sys", opts.SystemPrompt)
	assert.Equal(t, 42, opts.MaxTokens)
	assert.InDelta(t, 0.1, opts.Temperature, 1e-9)
	assert.Equal(t, []string{"a", "b"}, opts.Stop)

	client, err := NewClient(testConfig("https://api.example.com"))
	require.NoError(t, err)
	assert.Equal(t, 42, client.getMaxTokens(opts))
	assert.InDelta(t, 0.7, client.getTemperature(NewChatCompletionOptions()), 1e-9)
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: "plain answer", want: "plain answer"},
		{name: "unterminated fence", in: "```go\nfmt.Println()", want: "```go\nfmt.Println()"},
		{name: "language tag", in: "Here:\n```go\nfmt.Println(1)\n```\nDone", want: "fmt.Println(1)"},
		{name: "bare fence", in: "```\nls -la\n```", want: "ls -la"},
		{name: "inline", in: "run ```x = 1``` now", want: "x = 1"},
		{name: "first block wins", in: "```\na\n``` and ```\nb\n```", want: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.in))
		})
	}
}

func TestClientConcurrentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Complete(context.Background(), "Hello", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

// Integration test - requires LLM_API_KEY (or a .env file)
func TestClient_Integration(t *testing.T) {
	_ = godotenv.Load("./.env")
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		t.Skip("LLM_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("LLM_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-3.5-turbo"
	}

	client, err := NewClient(&Config{
		APIKey:      apiKey,
		APIURL:      apiURL,
		Model:       model,
		MaxTokens:   50,
		Temperature: 0,
		Timeout:     30,
	})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "Reply with the single word: pong", nil)
	require.NoError(t, err)
	t.Logf("completion: %s", out)
	assert.NotEmpty(t, out)
}
