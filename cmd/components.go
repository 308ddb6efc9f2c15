package main

import (
	"fmt"
	"io"
	"time"

	"github.com/MimeLyc/react-agent/internal/agent"
	"github.com/MimeLyc/react-agent/internal/config"
	"github.com/MimeLyc/react-agent/internal/llm"
	"github.com/MimeLyc/react-agent/internal/persistence"
	"github.com/MimeLyc/react-agent/internal/service"
	"github.com/MimeLyc/react-agent/internal/tools"
	"github.com/MimeLyc/react-agent/pkg/log"
)

// components is everything a command needs to answer questions.
type components struct {
	client *llm.Client
	agent  *agent.ReActAgent
	store  *persistence.SQLiteStore
	svc    *service.QAService
}

func (c *components) Close() error {
	if c.agent != nil {
		_ = c.agent.Close()
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

func newLLMConfig(cfg config.LLMConfig) *llm.Config {
	return &llm.Config{
		APIKey:      cfg.APIKey,
		APIURL:      cfg.APIURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		SiteURL:     cfg.SiteURL,
		AppName:     cfg.AppName,
	}
}

// buildRegistry registers the Hacker News tool, and the web search tool
// when a search API key is configured.
func buildRegistry(cfg *config.Config) (*tools.Registry, error) {
	hn, err := tools.NewHackerNewsSearchTool(tools.HackerNewsConfig{
		APIURL:            cfg.HackerNews.APIURL,
		CrawlURLs:         cfg.HackerNews.CrawlURLs,
		MaxResults:        cfg.HackerNews.MaxResults,
		ExcerptLines:      cfg.HackerNews.ExcerptLines,
		CacheSize:         cfg.HackerNews.CacheSize,
		RequestsPerSecond: cfg.HackerNews.RequestsPerSecond,
		Timeout:           time.Duration(cfg.LLM.Timeout) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	list := []tools.Tool{hn}
	if cfg.Search.APIKey != "" {
		list = append(list, tools.NewWebSearchTool(cfg.Search.APIKey, cfg.Search.APIURL))
	}

	retry := tools.DefaultRetryConfig()
	retry.MaxRetries = cfg.Tools.MaxRetries

	registry := tools.NewRegistry()
	for _, tool := range list {
		if err := registry.Register(tools.WithRetry(tool, retry)); err != nil {
			return nil, err
		}
	}
	log.Debug("Registered tools: %v", registry.Names())
	return registry, nil
}

func agentOptions(cfg *config.Config, verbose io.Writer) agent.Options {
	opts := agent.Options{
		MaxLoops:           cfg.Agent.MaxLoops,
		StopSequences:      cfg.Agent.StopSequences,
		MaxTranscriptChars: cfg.Agent.MaxTranscriptChars,
	}
	if verbose != nil {
		opts.StepHook = verboseHook(verbose)
	}
	return opts
}

// newComponents wires the client, tools, agent and, when enabled, the run
// history. verbose may be nil.
func newComponents(cfg *config.Config, verbose io.Writer) (*components, error) {
	client, err := llm.NewClient(newLLMConfig(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	c := &components{
		client: client,
		agent:  agent.NewReActAgent(client, registry, agentOptions(cfg, verbose)),
	}

	var store service.RunStore
	if cfg.HistoryEnabled() {
		c.store, err = persistence.NewSQLiteStore(cfg.DBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		store = c.store
	}
	c.svc = service.NewQAService(c.agent, store)
	return c, nil
}
