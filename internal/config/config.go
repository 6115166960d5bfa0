package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name,
// e.g. STORYKEEPER_TELEGRAM_BOT_TOKEN.
const EnvPrefix = "STORYKEEPER"

// LogConfig is shared by both binaries.
type LogConfig struct {
	Level string `mapstructure:"LOG_LEVEL"`
	// File switches output from stdout to a rotating file.
	File string `mapstructure:"LOG_FILE"`
}

// ClientConfig holds the configuration of the bot client.
// Values are read by viper from a config file or environment variables.
type ClientConfig struct {
	TelegramBotToken string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	APIBaseURL       string        `mapstructure:"API_BASE_URL"`
	HTTPTimeout      time.Duration `mapstructure:"HTTP_TIMEOUT"`
	FetchRetries     uint          `mapstructure:"FETCH_RETRIES"`
	StoryLimit       int           `mapstructure:"STORY_LIMIT"`
	ScrapeTitles     bool          `mapstructure:"SCRAPE_TITLES"`
	LogConfig        `mapstructure:",squash"`
}

// ServerConfig holds the configuration of the reference story service.
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"LISTEN_ADDR"`
	BadgerDBPath   string        `mapstructure:"BADGERDB_PATH"`
	BadgerInMemory bool          `mapstructure:"BADGER_IN_MEMORY"`
	TokenSecret    string        `mapstructure:"TOKEN_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	LogConfig      `mapstructure:",squash"`
}

// LoadClientConfig reads the client configuration from path/config.yaml
// and the environment.
func LoadClientConfig(path string) (ClientConfig, error) {
	v, err := load(path, map[string]any{
		"TELEGRAM_BOT_TOKEN": "",
		"API_BASE_URL":       "http://localhost:8080",
		"HTTP_TIMEOUT":       "10s",
		"FETCH_RETRIES":      3,
		"STORY_LIMIT":        100,
		"SCRAPE_TITLES":      true,
		"LOG_LEVEL":          "info",
		"LOG_FILE":           "",
	})
	if err != nil {
		return ClientConfig{}, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.TelegramBotToken == "" {
		return ClientConfig{}, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ClientConfig{}, fmt.Errorf("API_BASE_URL %q is not an http(s) url", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout <= 0 {
		return ClientConfig{}, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", cfg.HTTPTimeout)
	}
	if cfg.FetchRetries == 0 {
		cfg.FetchRetries = 1
	}
	if cfg.StoryLimit < 1 {
		return ClientConfig{}, fmt.Errorf("STORY_LIMIT must be at least 1, got %d", cfg.StoryLimit)
	}
	return cfg, nil
}

// LoadServerConfig reads the service configuration from path/config.yaml
// and the environment.
func LoadServerConfig(path string) (ServerConfig, error) {
	v, err := load(path, map[string]any{
		"LISTEN_ADDR":      ":8080",
		"BADGERDB_PATH":    "./badger_data",
		"BADGER_IN_MEMORY": false,
		"TOKEN_SECRET":     "",
		"TOKEN_TTL":        "24h",
		"LOG_LEVEL":        "info",
		"LOG_FILE":         "",
	})
	if err != nil {
		return ServerConfig{}, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.TokenSecret == "" {
		return ServerConfig{}, errors.New("TOKEN_SECRET is not set")
	}
	if cfg.TokenTTL <= 0 {
		return ServerConfig{}, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if !cfg.BadgerInMemory && cfg.BadgerDBPath == "" {
		return ServerConfig{}, errors.New("BADGERDB_PATH is empty and BADGER_IN_MEMORY is off")
	}
	return cfg, nil
}

// load builds a viper instance over path/config.yaml and the environment.
// Every key needs a default so AutomaticEnv can resolve it on Unmarshal.
func load(path string, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		// Env vars alone are enough; only a broken file is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}
