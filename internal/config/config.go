package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL      = "http://13.126.242.247/api/v1/books"
	DefaultPageSize    = 25
	DefaultDebounceMS  = 450
	DefaultRateLimit   = 4
	DefaultRelayListen = ":8080"

	relayBooksPath = "/api/books"
	configDirName  = "gutenberg-browse"
	configFileName = "config.json"
	envFileName    = ".env"
	envPrefix      = "GUTENBERG_"
)

// Config is the persisted client configuration. PageSize must match the
// number of records the API returns per page: it is never sent upstream and
// only drives the has-more check, so any other value hides or over-fetches
// books.
type Config struct {
	APIURL      string  `json:"api_url"`
	RelayURL    string  `json:"relay_url,omitempty"`
	PageSize    int     `json:"page_size"`
	DebounceMS  int     `json:"debounce_ms"`
	RateLimit   float64 `json:"rate_limit"`
	Verbose     bool    `json:"verbose"`
	RelayListen string  `json:"relay_listen,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		APIURL:      DefaultAPIURL,
		PageSize:    DefaultPageSize,
		DebounceMS:  DefaultDebounceMS,
		RateLimit:   DefaultRateLimit,
		RelayListen: DefaultRelayListen,
	}
}

func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve config dir: %w", err)
	}

	return filepath.Join(configDir, configDirName), nil
}

func ConfigPath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, configFileName), nil
}

func EnvPath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, envFileName), nil
}

// LoadEnv reads the .env file next to the config file. Variables already set
// in the environment win.
func LoadEnv() error {
	envPath, err := EnvPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(envPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("unable to read env file: %w", err)
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("unable to parse env file: %w", err)
	}

	return nil
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := LoadEnv(); err != nil {
		return withDefaults(cfg), err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return withDefaults(cfg), err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return withDefaults(ApplyEnvDefaults(cfg)), nil
		}
		return withDefaults(cfg), fmt.Errorf("unable to read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return withDefaults(Config{}), fmt.Errorf("unable to parse config: %w", err)
	}

	return withDefaults(ApplyEnvDefaults(cfg)), nil
}

func SaveConfig(cfg Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("unable to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("unable to write config: %w", err)
	}

	return nil
}

// ApplyEnvDefaults fills fields left unset by the config file from
// GUTENBERG_* variables.
func ApplyEnvDefaults(cfg Config) Config {
	if cfg.APIURL == "" {
		cfg.APIURL = env("API_URL")
	}
	if cfg.RelayURL == "" {
		cfg.RelayURL = env("RELAY_URL")
	}
	if cfg.PageSize == 0 {
		if size, err := strconv.Atoi(env("PAGE_SIZE")); err == nil {
			cfg.PageSize = size
		}
	}
	if cfg.DebounceMS == 0 {
		if delay, err := strconv.Atoi(env("DEBOUNCE_MS")); err == nil {
			cfg.DebounceMS = delay
		}
	}
	if cfg.RateLimit == 0 {
		if limit, err := strconv.ParseFloat(env("RATE_LIMIT"), 64); err == nil {
			cfg.RateLimit = limit
		}
	}
	if !cfg.Verbose {
		if value := env("VERBOSE"); value != "" {
			cfg.Verbose = value == "1" || strings.EqualFold(value, "true")
		}
	}
	if cfg.RelayListen == "" {
		cfg.RelayListen = env("RELAY_LISTEN")
	}

	return cfg
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func withDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.APIURL == "" {
		cfg.APIURL = defaults.APIURL
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.DebounceMS == 0 {
		cfg.DebounceMS = defaults.DebounceMS
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RelayListen == "" {
		cfg.RelayListen = defaults.RelayListen
	}
	return cfg
}

func (cfg Config) Debounce() time.Duration {
	return time.Duration(cfg.DebounceMS) * time.Millisecond
}

// Endpoint is the listing URL clients should call: the relay when one is
// configured, the API directly otherwise. A relay given without a path gets
// the relay's books route.
func (cfg Config) Endpoint() (string, error) {
	if strings.TrimSpace(cfg.RelayURL) != "" {
		endpoint, err := normalizeURL(cfg.RelayURL)
		if err != nil {
			return "", fmt.Errorf("invalid relay url: %w", err)
		}
		parsed, _ := url.Parse(endpoint)
		if parsed.Path == "" {
			parsed.Path = relayBooksPath
		}
		return parsed.String(), nil
	}

	if strings.TrimSpace(cfg.APIURL) == "" {
		return "", errors.New("api url not configured")
	}
	endpoint, err := normalizeURL(cfg.APIURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	return endpoint, nil
}

func normalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errors.New("url is empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}

	if parsed.Host == "" {
		return "", errors.New("url missing host")
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return parsed.String(), nil
}

func (cfg Config) Validate() error {
	if _, err := cfg.Endpoint(); err != nil {
		return err
	}
	if cfg.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	if cfg.DebounceMS < 0 {
		return fmt.Errorf("debounce must not be negative, got %d", cfg.DebounceMS)
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", cfg.RateLimit)
	}
	return nil
}
