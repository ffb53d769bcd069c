package main

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/run-bigpig/watchdog/internal/adk"
	adkmcp "github.com/run-bigpig/watchdog/internal/adk/mcp"
	"github.com/run-bigpig/watchdog/internal/adk/tools"
	"github.com/run-bigpig/watchdog/internal/agent"
	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/memory"
	"github.com/run-bigpig/watchdog/internal/metrics"
	"github.com/run-bigpig/watchdog/internal/services/market"
	"github.com/run-bigpig/watchdog/internal/services/news"
	"github.com/run-bigpig/watchdog/internal/services/notify"
	"github.com/run-bigpig/watchdog/internal/store"
)

var log = logger.New("App")

const (
	localProviderID = "local"
	localLabel      = "LOCAL"
)

// app wired process components
type app struct {
	store    *store.Store
	manager  *adkmcp.Manager
	session  *agent.Session
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// newLocalServer wires the local tool server over its collaborators
func newLocalServer(ctx context.Context, db *store.Store, m *metrics.Metrics) (*mcp.Server, error) {
	cache, err := market.NewFileCache(cfg.Storage.CacheDir, cfg.Market.CacheTTL)
	if err != nil {
		return nil, err
	}
	prices := market.NewService(market.Config{
		BaseURL:   cfg.Market.BaseURL,
		RateLimit: cfg.Market.RateLimit,
		Timeout:   cfg.Market.Timeout,
		Cache:     cache,
	})

	embedder := memory.NewOpenAIEmbedder(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.EmbeddingModel, cfg.AI.EmbedTimeout)
	mem := memory.NewStore(embedder, memory.WithSizeObserver(m.SetMemoryRecords))

	notifier := notify.New(notify.Settings{
		Kind:              cfg.Notify.Kind,
		DiscordWebhookURL: cfg.Notify.DiscordWebhookURL,
		SlackWebhookURL:   cfg.Notify.SlackWebhookURL,
		TelegramBotToken:  cfg.Notify.TelegramToken,
		TelegramChatID:    cfg.Notify.TelegramChatID,
	})

	registry := tools.NewRegistry(tools.Deps{
		Portfolio:  db,
		Prices:     prices,
		News:       news.NewScraper(cfg.News.SearchURL, cfg.News.MaxArticles, cfg.News.Timeout),
		Memory:     mem,
		Notifier:   notifier,
		WindowDays: cfg.Market.HistoryDays,
	})
	return registry.NewServer(), nil
}

// newApp builds the full agent: store, tool providers, backend and session
func newApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	a := &app{store: db, registry: prometheus.NewRegistry()}
	a.metrics = metrics.New(a.registry)

	server, err := newLocalServer(ctx, db, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.manager = adkmcp.NewManager("watchdog")
	local, err := a.manager.ConnectInMemory(ctx, localProviderID, localLabel, server)
	if err != nil {
		a.Close()
		return nil, err
	}
	providers := []agent.Provider{local}

	if webCfg := cfg.WebSearchServer(); webCfg != nil {
		web, err := a.manager.Connect(ctx, *webCfg)
		if err != nil {
			// web search is optional; the agent keeps working with local tools
			log.Warn("web search provider unavailable: %v", err)
		} else {
			providers = append(providers, web)
		}
	}

	toolRegistry, err := agent.NewToolRegistry(ctx, providers...)
	if err != nil {
		a.Close()
		return nil, err
	}

	llm, err := adk.NewModelFactory().CreateModel(ctx, cfg.ModelConfig())
	if err != nil {
		_ = toolRegistry.Close()
		a.Close()
		return nil, err
	}

	orchestrator := agent.NewOrchestrator(adk.NewLLMBackend(llm), toolRegistry, agent.Options{
		StepBudget:     cfg.Agent.StepBudget,
		BackendTimeout: cfg.Agent.BackendTimeout,
		BackendRetries: cfg.Agent.BackendRetries,
		ToolTimeout:    cfg.Agent.ToolTimeout,
		Metrics:        a.metrics,
	})
	a.session = agent.NewSession(orchestrator, cfg.Agent.MaxConcurrentTurns, nil)

	if cfg.App.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.App.MetricsAddr, a.registry); err != nil {
				log.Error("%v", err)
			}
		}()
	}

	log.Info("agent ready with %d tools from %v", len(toolRegistry.ListDescriptors()), toolRegistry.Labels())
	return a, nil
}

// Close releases providers and the database
func (a *app) Close() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			log.Warn("closing tool providers: %v", err)
		}
	}
	if a.manager != nil {
		_ = a.manager.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn("closing store: %v", err)
		}
	}
}

// requireUser verifies that the user exists before a turn runs on their behalf
func requireUser(ctx context.Context, db *store.Store, user string) error {
	if user == "" {
		return goerr.New("--user is required")
	}
	exists, err := db.UserExists(ctx, user)
	if err != nil {
		return err
	}
	if !exists {
		return goerr.New("unknown user, create it with 'watchdog user add'", goerr.V("user", user))
	}
	return nil
}
