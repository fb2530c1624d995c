package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`

	// AI provider
	AIProvider        string `mapstructure:"ai_provider"`
	OllamaBaseURL     string `mapstructure:"ollama_base_url"`
	OllamaModel       string `mapstructure:"ollama_model"`
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url"`
	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key"`
	OpenRouterModel   string `mapstructure:"openrouter_model"`
	OpenRouterSiteURL string `mapstructure:"openrouter_site_url"`
	OpenRouterAppName string `mapstructure:"openrouter_app_name"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	GeminiModel       string `mapstructure:"gemini_model"`

	// title inference
	TitlePromptFile string `mapstructure:"title_prompt_file"`
	AutoTitle       bool   `mapstructure:"auto_title"`

	// rabbitMQ, disabled when the url is empty
	RabbitURL   string `mapstructure:"rabbit_url"`
	RabbitQueue string `mapstructure:"rabbit_queue"`

	// exchange archive fed by the worker
	WorkerConcurrency int    `mapstructure:"worker_concurrency"`
	ArchiveDriver     string `mapstructure:"archive_driver"`
	ArchiveDSN        string `mapstructure:"archive_dsn"`

	// client side
	ServerURL       string `mapstructure:"server_url"`
	ClientStore     string `mapstructure:"client_store"`
	ClientStorePath string `mapstructure:"client_store_path"`
	ClientDBDriver  string `mapstructure:"client_db_driver"`
	ClientDBDSN     string `mapstructure:"client_db_dsn"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"http_addr": ":3000",

	"ai_provider":         "ollama",
	"ollama_base_url":     "http://localhost:11434",
	"ollama_model":        "kai",
	"openrouter_base_url": "https://openrouter.ai/api/v1",
	"openrouter_api_key":  "",
	"openrouter_model":    "openrouter/auto",
	"openrouter_site_url": "",
	"openrouter_app_name": "",
	"gemini_api_key":      "",
	"gemini_model":        "gemini-2.0-flash",

	"title_prompt_file": "",
	"auto_title":        false,

	"rabbit_url":   "",
	"rabbit_queue": "chat_exchanges",

	"worker_concurrency": 2,
	"archive_driver":     "sqlite",
	"archive_dsn":        "file:archive.db",

	"server_url":        "http://localhost:3000",
	"client_store":      "file",
	"client_store_path": ".kai",
	"client_db_driver":  "sqlite",
	"client_db_dsn":     "file:.kai/client.db",
	"redis_addr":        "127.0.0.1:6379",
	"redis_password":    "",
	"redis_db":          0,

	"log_level":  "info",
	"log_format": "json",
}

// New returns a viper instance with defaults and environment binding applied.
// Environment variables use the upper-cased key (OLLAMA_MODEL, REDIS_ADDR, ...).
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
		_ = v.BindEnv(k, strings.ToUpper(k))
	}
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file (TOML, YAML or JSON by extension) and
// merges it under the environment.
func Load(cfgFile string) (Config, error) {
	return LoadViper(New(), cfgFile)
}

// LoadViper is Load on a caller-provided instance, e.g. one with flags bound.
func LoadViper(v *viper.Viper, cfgFile string) (Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %s", cfgFile)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	cfg.ClientStore = strings.ToLower(strings.TrimSpace(cfg.ClientStore))
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}
	if cfg.WorkerConcurrency > 50 {
		cfg.WorkerConcurrency = 50
	}
	return cfg, nil
}
