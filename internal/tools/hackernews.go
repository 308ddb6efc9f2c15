package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"

	"github.com/MimeLyc/react-agent/pkg/log"
)

const (
	DefaultHackerNewsURL = "https://hn.algolia.com/api/v1/search_by_date"

	defaultHNMaxResults   = 5
	defaultHNExcerptLines = 2000
	defaultHNCacheSize    = 128
	defaultHNRPS          = 10
	maxPageBytes          = 2 << 20
)

// HackerNewsConfig configures the Hacker News search tool.
type HackerNewsConfig struct {
	APIURL string
	// CrawlURLs fetches each story's page and adds a text excerpt instead
	// of the top comment.
	CrawlURLs    bool
	MaxResults   int
	ExcerptLines int
	// CacheSize bounds the digest cache; negative disables caching.
	CacheSize int
	// RequestsPerSecond limits calls to the search API; negative disables limiting.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// HackerNewsSearchTool searches recent, well-received Hacker News stories.
type HackerNewsSearchTool struct {
	cfg        HackerNewsConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *lru.Cache[string, string]
	printer    *message.Printer
}

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CommentText string `json:"comment_text"`
}

func NewHackerNewsSearchTool(cfg HackerNewsConfig) (*HackerNewsSearchTool, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultHackerNewsURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultHNMaxResults
	}
	if cfg.ExcerptLines <= 0 {
		cfg.ExcerptLines = defaultHNExcerptLines
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaultHNCacheSize
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = defaultHNRPS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	t := &HackerNewsSearchTool{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		printer:    message.NewPrinter(language.English),
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create digest cache: %w", err)
		}
		t.cache = cache
	}

	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return t, nil
}

func (t *HackerNewsSearchTool) Name() string {
	return "hacker news search"
}

func (t *HackerNewsSearchTool) Description() string {
	if t.cfg.CrawlURLs {
		return "Get insight from hacker news stories related to specific search terms. Input should be a search term (e.g. How to get rich?). The output will be the most recent popular stories related to it with an excerpt of each linked page."
	}
	return "Get insight from hacker news users to specific search terms. Input should be a search term (e.g. How to get rich?). The output will be the most recent stories related to it with a user comment."
}

func (t *HackerNewsSearchTool) Invoke(ctx context.Context, input string) (string, error) {
	query := NormalizeQuery(input)
	if query == "" {
		return "", fmt.Errorf("empty search query")
	}

	key := fmt.Sprintf("%t|%s", t.cfg.CrawlURLs, query)
	if t.cache != nil {
		if digest, ok := t.cache.Get(key); ok {
			log.Debug("Hacker News digest cache hit for %q", query)
			return digest, nil
		}
	}

	digest, complete, err := t.search(ctx, query)
	if err != nil {
		return "", err
	}

	// A digest missing a comment or excerpt is served but not cached.
	if t.cache != nil && complete {
		t.cache.Add(key, digest)
	}
	return digest, nil
}

// search reports complete=false when enrichment failed for any story.
func (t *HackerNewsSearchTool) search(ctx context.Context, query string) (digest string, complete bool, err error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("tags", "story")
	params.Set("numericFilters", "points>100")
	params.Set("hitsPerPage", fmt.Sprint(t.cfg.MaxResults))

	var stories algoliaResponse
	if err := t.getJSON(ctx, params, &stories); err != nil {
		return "", false, fmt.Errorf("search stories: %w", err)
	}

	hits := stories.Hits
	if len(hits) > t.cfg.MaxResults {
		hits = hits[:t.cfg.MaxResults]
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No stories found for %q.\n", query), true, nil
	}

	// Enrichment runs concurrently; details[i] belongs to hits[i].
	details := make([]string, len(hits))
	var failed atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(hits))
	for i, hit := range hits {
		g.Go(func() error {
			detail, err := t.enrich(gctx, hit)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("Hacker News enrichment failed for story %s: %v", hit.ObjectID, err)
				failed.Store(true)
				return nil
			}
			details[i] = detail
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", false, err
	}

	var sb strings.Builder
	for i, hit := range hits {
		sb.WriteString(t.printer.Sprintf("Title: %s (%d points, %d comments)\n", hit.Title, hit.Points, hit.NumComments))
		if details[i] != "" {
			sb.WriteString(details[i])
		}
	}
	return sb.String(), !failed.Load(), nil
}

// enrich returns the excerpt or comment line for one story.
func (t *HackerNewsSearchTool) enrich(ctx context.Context, hit algoliaHit) (string, error) {
	if t.cfg.CrawlURLs && hit.URL != "" {
		excerpt, err := t.extractText(ctx, hit.URL)
		if err != nil {
			return "", fmt.Errorf("crawl %s: %w", hit.URL, err)
		}
		if excerpt == "" {
			return "", nil
		}
		return fmt.Sprintf("\tExcerpt: %s\n", excerpt), nil
	}

	comment, err := t.topComment(ctx, hit.ObjectID)
	if err != nil {
		return "", err
	}
	if comment == "" {
		return "", nil
	}
	return fmt.Sprintf("\tComment: %s\n", comment), nil
}

func (t *HackerNewsSearchTool) topComment(ctx context.Context, storyID string) (string, error) {
	if storyID == "" {
		return "", nil
	}
	params := url.Values{}
	params.Set("tags", "comment,story_"+storyID)
	params.Set("hitsPerPage", "1")

	var comments algoliaResponse
	if err := t.getJSON(ctx, params, &comments); err != nil {
		return "", fmt.Errorf("fetch comments: %w", err)
	}
	if len(comments.Hits) == 0 {
		return "", nil
	}

	text, err := htmlToText(comments.Hits[0].CommentText, 0)
	if err != nil {
		return "", fmt.Errorf("convert comment: %w", err)
	}
	return strings.ReplaceAll(text, "\n", " "), nil
}

func (t *HackerNewsSearchTool) extractText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return htmlToText(string(body), t.cfg.ExcerptLines)
}

func (t *HackerNewsSearchTool) getJSON(ctx context.Context, params url.Values, dst any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// htmlToText converts HTML to plain lines: trimmed, non-empty, and capped
// at maxLines when maxLines > 0.
func htmlToText(html string, maxLines int) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0)
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if maxLines > 0 && len(lines) >= maxLines {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}
