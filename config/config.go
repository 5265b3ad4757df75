package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the collection engine
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	OracleTimeout  time.Duration `mapstructure:"oracle_timeout"`
	ToolTimeout    time.Duration `mapstructure:"tool_timeout"`
}

// BudgetConfig bounds a single collection run.
type BudgetConfig struct {
	MaxItems            int `mapstructure:"max_items"`
	MaxActions          int `mapstructure:"max_actions"`
	MaxRetriesPerAction int `mapstructure:"max_retries_per_action"`
	ReferenceWindowDays int `mapstructure:"reference_window_days"`
	TopN                int `mapstructure:"top_n"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai-compatible
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for different call sites
type LLMRoutingConfig struct {
	Planning   string `mapstructure:"planning"`   // next-action proposals
	Judgment   string `mapstructure:"judgment"`   // quality-gate verdicts (cheap model)
	Extraction string `mapstructure:"extraction"` // entity extraction from leads
	Fallback   string `mapstructure:"fallback"`
}

// ToolsConfig contains the data-collection adapter settings
type ToolsConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	Bilibili  BilibiliConfig  `mapstructure:"bilibili"`
	Reddit    RedditConfig    `mapstructure:"reddit"`
	Webpage   WebpageConfig   `mapstructure:"webpage"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper | brave
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// YouTubeConfig contains YouTube Data API settings
type YouTubeConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// BilibiliConfig contains Bilibili search settings
type BilibiliConfig struct {
	Cookie     string        `mapstructure:"cookie"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RedditConfig contains Reddit search settings
type RedditConfig struct {
	UserAgent  string        `mapstructure:"user_agent"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// WebpageConfig contains article fetch settings
type WebpageConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Schedule  string `mapstructure:"schedule"` // cron expression for periodic runs, empty disables
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("radar")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults plus env cover the common case
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", "30s")
	v.SetDefault("general.oracle_timeout", "45s")
	v.SetDefault("general.tool_timeout", "60s")

	v.SetDefault("budget.max_items", 50)
	v.SetDefault("budget.max_actions", 40)
	v.SetDefault("budget.max_retries_per_action", 2)
	v.SetDefault("budget.reference_window_days", 30)
	v.SetDefault("budget.top_n", 10)

	v.SetDefault("llm.routing.planning", "gpt-5")
	v.SetDefault("llm.routing.judgment", "gpt-5-nano")
	v.SetDefault("llm.routing.extraction", "gpt-5-nano")
	v.SetDefault("llm.routing.fallback", "gpt-5-nano")

	v.SetDefault("tools.web_search.provider", "serper")
	v.SetDefault("tools.web_search.max_results", 20)
	v.SetDefault("tools.web_search.timeout", "30s")
	v.SetDefault("tools.youtube.max_results", 15)
	v.SetDefault("tools.youtube.timeout", "30s")
	v.SetDefault("tools.bilibili.max_results", 15)
	v.SetDefault("tools.bilibili.timeout", "30s")
	v.SetDefault("tools.reddit.user_agent", "radar/1.0")
	v.SetDefault("tools.reddit.max_results", 15)
	v.SetDefault("tools.reddit.timeout", "30s")
	v.SetDefault("tools.webpage.timeout", "20s")
	v.SetDefault("tools.webpage.max_bytes", 2<<20)

	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", "5s")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", "5s")

	v.SetDefault("server.listen", ":10010")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.schedule", "")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_port", 9090)
}

// overrideFromEnv overrides configuration with well-known environment variables
func overrideFromEnv(v *viper.Viper) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		v.Set("llm.providers.openai.api_key", apiKey)
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		v.Set("tools.web_search.serper_api_key", apiKey)
	}
	if apiKey := os.Getenv("BRAVE_SEARCH_KEY"); apiKey != "" {
		v.Set("tools.web_search.brave_api_key", apiKey)
	}
	if apiKey := os.Getenv("YOUTUBE_API_KEY"); apiKey != "" {
		v.Set("tools.youtube.api_key", apiKey)
	}
	if cookie := os.Getenv("BILIBILI_COOKIE"); cookie != "" {
		v.Set("tools.bilibili.cookie", cookie)
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		v.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("storage.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("storage.redis.password", password)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		v.Set("storage.postgres.url", url)
	}
	if secret := os.Getenv("RADAR_JWT_SECRET"); secret != "" {
		v.Set("server.jwt_secret", secret)
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Budget.MaxActions <= 0 {
		return fmt.Errorf("budget.max_actions must be positive")
	}
	if cfg.Budget.MaxItems <= 0 {
		return fmt.Errorf("budget.max_items must be positive")
	}
	if cfg.Budget.MaxRetriesPerAction < 0 {
		return fmt.Errorf("budget.max_retries_per_action must not be negative")
	}
	if cfg.Budget.ReferenceWindowDays <= 0 {
		return fmt.Errorf("budget.reference_window_days must be positive")
	}

	routingModels := []string{
		cfg.LLM.Routing.Planning,
		cfg.LLM.Routing.Judgment,
		cfg.LLM.Routing.Extraction,
		cfg.LLM.Routing.Fallback,
	}
	for _, model := range routingModels {
		if model == "" {
			continue
		}
		found := false
		for _, provider := range cfg.LLM.Providers {
			for key, providerModel := range provider.Models {
				if key == model || providerModel.Name == model {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found && len(cfg.LLM.Providers) > 0 {
			return fmt.Errorf("routing model %q not found in any provider", model)
		}
	}

	return nil
}
