package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/m-mizutani/goerr/v2"

	"github.com/run-bigpig/watchdog/internal/models"
	"github.com/run-bigpig/watchdog/internal/pkg/paths"
)

var (
	ErrInvalidConfig     = goerr.New("invalid configuration")
	ErrMissingCredential = goerr.New("required credential is missing")
)

// Config process-wide settings
type Config struct {
	App     AppConfig
	AI      AIConfig
	Agent   AgentConfig
	Market  MarketConfig
	News    NewsConfig
	Notify  NotifyConfig
	Web     WebSearchConfig
	Storage StorageConfig
}

type AppConfig struct {
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

type AIConfig struct {
	Provider       string        `envconfig:"AI_PROVIDER" default:"openai"`
	Model          string        `envconfig:"AI_MODEL" default:"gpt-4o"`
	OpenAIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `envconfig:"OPENAI_BASE_URL"`
	GeminiKey      string        `envconfig:"GEMINI_API_KEY"`
	NoSystemRole   bool          `envconfig:"AI_NO_SYSTEM_ROLE" default:"false"`
	EmbeddingModel string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbedTimeout   time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
}

type AgentConfig struct {
	StepBudget         int           `envconfig:"AGENT_STEP_BUDGET" default:"5"`
	BackendTimeout     time.Duration `envconfig:"AGENT_BACKEND_TIMEOUT" default:"90s"`
	BackendRetries     int           `envconfig:"AGENT_BACKEND_RETRIES" default:"2"`
	ToolTimeout        time.Duration `envconfig:"AGENT_TOOL_TIMEOUT" default:"60s"`
	MaxConcurrentTurns int64         `envconfig:"AGENT_MAX_CONCURRENT_TURNS" default:"4"`
}

type MarketConfig struct {
	BaseURL     string        `envconfig:"MARKET_BASE_URL" default:"https://query1.finance.yahoo.com"`
	HistoryDays int           `envconfig:"MARKET_HISTORY_DAYS" default:"365"`
	CacheTTL    time.Duration `envconfig:"MARKET_CACHE_TTL" default:"5m"`
	RateLimit   float64       `envconfig:"MARKET_RATE_LIMIT" default:"2"`
	Timeout     time.Duration `envconfig:"MARKET_TIMEOUT" default:"15s"`
}

type NewsConfig struct {
	SearchURL   string        `envconfig:"NEWS_SEARCH_URL" default:"https://apnews.com/search"`
	MaxArticles int           `envconfig:"NEWS_MAX_ARTICLES" default:"3"`
	Timeout     time.Duration `envconfig:"NEWS_TIMEOUT" default:"15s"`
}

type NotifyConfig struct {
	Kind              string `envconfig:"NOTIFY_KIND" default:"discord"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`
	SlackWebhookURL   string `envconfig:"SLACK_WEBHOOK_URL"`
	TelegramToken     string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID    int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

type WebSearchConfig struct {
	Enabled   bool     `envconfig:"WEB_SEARCH_ENABLED" default:"true"`
	TavilyKey string   `envconfig:"TAVILY_API_KEY"`
	Command   string   `envconfig:"WEB_SEARCH_COMMAND" default:"npx"`
	Args      []string `envconfig:"WEB_SEARCH_ARGS" default:"-y,tavily-mcp@latest"`
}

type StorageConfig struct {
	DBPath   string `envconfig:"DB_PATH"`
	CacheDir string `envconfig:"CACHE_DIR"`
}

// Load reads .env (when present) and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to process env config")
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(paths.GetDataDir(), "portfolio.db")
	}
	if cfg.Storage.CacheDir == "" {
		cfg.Storage.CacheDir = paths.GetCacheDir()
	}
	return &cfg, nil
}

// Validate reports configuration errors that must stop a session before any
// turn runs.
func (c *Config) Validate() error {
	if c.Agent.StepBudget <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "step budget must be positive", goerr.V("AGENT_STEP_BUDGET", c.Agent.StepBudget))
	}
	if c.Agent.MaxConcurrentTurns <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "turn concurrency must be positive", goerr.V("AGENT_MAX_CONCURRENT_TURNS", c.Agent.MaxConcurrentTurns))
	}

	switch models.AIProvider(c.AI.Provider) {
	case models.AIProviderOpenAI:
		if c.AI.OpenAIKey == "" {
			return goerr.Wrap(ErrMissingCredential, "OPENAI_API_KEY is required", goerr.V("provider", c.AI.Provider))
		}
	case models.AIProviderGemini:
		if c.AI.GeminiKey == "" {
			return goerr.Wrap(ErrMissingCredential, "GEMINI_API_KEY is required", goerr.V("provider", c.AI.Provider))
		}
		// embeddings still go through the OpenAI API
		if c.AI.OpenAIKey == "" {
			return goerr.Wrap(ErrMissingCredential, "OPENAI_API_KEY is required for embeddings")
		}
	default:
		return goerr.Wrap(ErrInvalidConfig, "unsupported AI provider", goerr.V("provider", c.AI.Provider))
	}

	if c.Web.Enabled && c.Web.TavilyKey == "" {
		return goerr.Wrap(ErrMissingCredential, "TAVILY_API_KEY is required when web search is enabled")
	}
	return nil
}

// ModelConfig reasoning backend settings for the configured provider
func (c *Config) ModelConfig() *models.AIConfig {
	cfg := &models.AIConfig{
		Provider:     models.AIProvider(c.AI.Provider),
		ModelName:    c.AI.Model,
		NoSystemRole: c.AI.NoSystemRole,
	}
	switch cfg.Provider {
	case models.AIProviderGemini:
		cfg.APIKey = c.AI.GeminiKey
	default:
		cfg.APIKey = c.AI.OpenAIKey
		cfg.BaseURL = c.AI.OpenAIBaseURL
	}
	return cfg
}

// WebSearchServer MCP server config for the web provider, nil when disabled
func (c *Config) WebSearchServer() *models.MCPServerConfig {
	if !c.Web.Enabled {
		return nil
	}
	return &models.MCPServerConfig{
		ID:            "web",
		Name:          "tavily",
		Label:         "WEB",
		TransportType: models.MCPTransportCommand,
		Command:       c.Web.Command,
		Args:          trimAll(c.Web.Args),
		Env:           []string{"TAVILY_API_KEY=" + c.Web.TavilyKey},
		Enabled:       true,
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
