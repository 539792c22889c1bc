package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level supportd configuration.
type Config struct {
	Service    ServiceConfig             `json:"service"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Tickets    TicketsConfig             `json:"tickets"`
	Search     SearchConfig              `json:"search"`
	Sessions   SessionsConfig            `json:"sessions"`
	Connectors ConnectorConfig           `json:"connectors"`
	API        APIConfig                 `json:"api"`
}

// ServiceConfig holds service-level settings.
type ServiceConfig struct {
	Name    string `json:"name"`
	DataDir string `json:"data_dir"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "openai" (default) or "anthropic"
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// TicketsConfig holds ticket persistence settings. An empty DBPath keeps
// tickets in process memory only.
type TicketsConfig struct {
	DBPath string `json:"db_path,omitempty"`
}

// SearchConfig holds the search-index location and the CSV datasets
// loaded into it at startup.
type SearchConfig struct {
	DBPath       string `json:"db_path,omitempty"`
	KnowledgeCSV string `json:"knowledge_csv,omitempty"`
	CategoryCSV  string `json:"category_csv,omitempty"`
}

// SessionsConfig controls session eviction.
type SessionsConfig struct {
	IdleTTLMinutes int    `json:"idle_ttl_minutes,omitempty"` // default 240
	SweepSchedule  string `json:"sweep_schedule,omitempty"`   // cron spec, default "@every 10m"
}

// ConnectorConfig holds settings for external platform connectors.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty"`
}

// SlackConfig holds Slack Socket Mode settings.
type SlackConfig struct {
	BotToken string   `json:"bot_token"`
	AppToken string   `json:"app_token"`
	Channels []string `json:"channels,omitempty"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with the
// SUPPORTD_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:    getenv("SUPPORTD_SERVICE_NAME", "supportd"),
			DataDir: getenv("SUPPORTD_DATA_DIR", "/data"),
		},
		Providers: make(map[string]ProviderConfig),
		Tickets: TicketsConfig{
			DBPath: os.Getenv("SUPPORTD_TICKETS_DB"),
		},
		Search: SearchConfig{
			DBPath:       os.Getenv("SUPPORTD_SEARCH_DB"),
			KnowledgeCSV: os.Getenv("SUPPORTD_KNOWLEDGE_CSV"),
			CategoryCSV:  os.Getenv("SUPPORTD_CATEGORY_CSV"),
		},
		API: APIConfig{
			Host: getenv("SUPPORTD_API_HOST", "0.0.0.0"),
			Port: getenvInt("SUPPORTD_API_PORT", 8080),
			Key:  os.Getenv("SUPPORTD_API_KEY"),
		},
	}

	if apiKey := os.Getenv("SUPPORTD_ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:   "anthropic",
			APIKey: apiKey,
			Model:  getenv("SUPPORTD_MODEL", "claude-sonnet-4-20250514"),
		}
	} else if apiKey := os.Getenv("SUPPORTD_OPENAI_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: os.Getenv("SUPPORTD_OPENAI_BASE_URL"),
			Model:   getenv("SUPPORTD_MODEL", "gpt-4o"),
		}
	}

	if token := os.Getenv("SUPPORTD_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("SUPPORTD_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: SUPPORTD_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	if bot := os.Getenv("SUPPORTD_SLACK_BOT_TOKEN"); bot != "" {
		cfg.Connectors.Slack = &SlackConfig{
			BotToken: bot,
			AppToken: os.Getenv("SUPPORTD_SLACK_APP_TOKEN"),
		}
	}

	cfg.Sessions.IdleTTLMinutes = getenvInt("SUPPORTD_SESSION_TTL_MINUTES", 240)
	cfg.Sessions.SweepSchedule = getenv("SUPPORTD_SESSION_SWEEP", "@every 10m")

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "supportd"
	}
	if c.Sessions.IdleTTLMinutes <= 0 {
		c.Sessions.IdleTTLMinutes = 240
	}
	if c.Sessions.SweepSchedule == "" {
		c.Sessions.SweepSchedule = "@every 10m"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Validate checks for required fields, reporting all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}
	if c.Service.DataDir == "" {
		errs = append(errs, "service.data_dir is required")
	}

	if len(c.Providers) == 0 {
		errs = append(errs, "at least one provider is required")
	}
	for name, p := range c.Providers {
		if p.APIKey == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.api_key is required", name))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.model is required", name))
		}
		switch p.Type {
		case "", "openai", "anthropic":
		default:
			errs = append(errs, fmt.Sprintf("providers.%s.type %q is not supported", name, p.Type))
		}
	}

	if c.Connectors.Telegram != nil && c.Connectors.Telegram.Token == "" {
		errs = append(errs, "connectors.telegram.token is required")
	}
	if c.Connectors.Slack != nil {
		if c.Connectors.Slack.BotToken == "" {
			errs = append(errs, "connectors.slack.bot_token is required")
		}
		if c.Connectors.Slack.AppToken == "" {
			errs = append(errs, "connectors.slack.app_token is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
