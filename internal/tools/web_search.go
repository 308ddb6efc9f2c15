package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebSearchTool implements general web search using the Tavily API
type WebSearchTool struct {
	apiKey     string
	apiURL     string
	maxResults int
	httpClient *http.Client
}

// WebSearchArgs is the optional JSON form of the tool input
type WebSearchArgs struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"` // basic, advanced
	Topic       string `json:"topic,omitempty"`        // general, news
}

// TavilyRequest represents a request to Tavily API
type TavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	Topic         string `json:"topic,omitempty"`
	IncludeAnswer bool   `json:"include_answer,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
}

// TavilyResponse represents a response from Tavily API
type TavilyResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []TavilyResult `json:"results"`
}

// TavilyResult represents a single search result
type TavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// NewWebSearchTool creates a new web search tool
func NewWebSearchTool(apiKey, apiURL string) *WebSearchTool {
	if apiURL == "" {
		apiURL = "https://api.tavily.com/search"
	}
	return &WebSearchTool{
		apiKey:     apiKey,
		apiURL:     apiURL,
		maxResults: 5,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Search the web for up-to-date facts. Input should be a search query (e.g. Go 1.24 release date). The output is a short summary followed by the top result titles, URLs and snippets."
}

func (t *WebSearchTool) Invoke(ctx context.Context, input string) (string, error) {
	args := WebSearchArgs{}
	if !decodeJSONInput(input, &args) || strings.TrimSpace(args.Query) == "" {
		args = WebSearchArgs{Query: NormalizeQuery(input)}
	}
	if args.Query == "" {
		return "", fmt.Errorf("empty search query")
	}

	results, err := t.search(ctx, args)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	return t.formatResults(results), nil
}

func (t *WebSearchTool) search(ctx context.Context, args WebSearchArgs) (*TavilyResponse, error) {
	depth := args.SearchDepth
	if depth == "" {
		depth = "basic"
	}
	request := TavilyRequest{
		APIKey:        t.apiKey,
		Query:         args.Query,
		SearchDepth:   depth,
		Topic:         args.Topic,
		IncludeAnswer: true,
		MaxResults:    t.maxResults,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var tavilyResp TavilyResponse
	if err := json.Unmarshal(body, &tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &tavilyResp, nil
}

func (t *WebSearchTool) formatResults(resp *TavilyResponse) string {
	var result bytes.Buffer

	result.WriteString(fmt.Sprintf("Search Query: %s\n", resp.Query))

	if resp.Answer != "" {
		result.WriteString(fmt.Sprintf("Summary: %s\n", resp.Answer))
	}

	if len(resp.Results) == 0 {
		result.WriteString("No results found.\n")
		return result.String()
	}

	for i, r := range resp.Results {
		result.WriteString(fmt.Sprintf("%d. %s\n", i+1, r.Title))
		result.WriteString(fmt.Sprintf("   URL: %s\n", r.URL))
		content := r.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		result.WriteString(fmt.Sprintf("   Content: %s\n", content))
	}

	return result.String()
}
