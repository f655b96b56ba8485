package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Logging    LoggingConfig    `toml:"logging"`
	HTTP       HTTPConfig       `toml:"http"`
	Summarizer SummarizerConfig `toml:"summarizer"`
	Notes      NotesConfig      `toml:"notes"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"` // "stdout" and/or "file"
}

// HTTPConfig controls outbound page and PDF fetches
type HTTPConfig struct {
	UserAgent    string `toml:"user_agent"`
	PageTimeout  string `toml:"page_timeout"`  // e.g. "30s"
	PDFTimeout   string `toml:"pdf_timeout"`   // e.g. "60s"
	RequestDelay string `toml:"request_delay"` // minimum delay between requests to the same host
}

// SummarizerConfig holds defaults for the OpenAI-backed summarizer.
// APIKey here is a fallback only - requests may carry their own credential.
type SummarizerConfig struct {
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	MaxRetries int    `toml:"max_retries"`
}

// NotesConfig holds defaults for the destination note-taking app
type NotesConfig struct {
	BaseURL string `toml:"base_url"`
	Project string `toml:"project"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8920,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/scribo",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		HTTP: HTTPConfig{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			PageTimeout:  "30s",
			PDFTimeout:   "60s",
			RequestDelay: "500ms",
		},
		Summarizer: SummarizerConfig{
			Model:      "gpt-4.1-mini",
			MaxRetries: 3,
		},
		Notes: NotesConfig{
			BaseURL: "https://scrapbox.io",
		},
	}
}

// LoadConfig loads configuration with precedence: defaults -> file -> env
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies SCRIBO_* environment variables on top of file config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SCRIBO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("SCRIBO_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("SCRIBO_DATA_DIR"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("SCRIBO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.Summarizer.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		config.Summarizer.Model = v
	}
	if v := os.Getenv("SCRAPBOX_BASE_URL"); v != "" {
		config.Notes.BaseURL = v
	}
	if v := os.Getenv("SCRAPBOX_PROJECT"); v != "" {
		config.Notes.Project = v
	}
}

// validate checks config values that would otherwise fail deep inside a job
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"http.page_timeout", c.HTTP.PageTimeout},
		{"http.pdf_timeout", c.HTTP.PDFTimeout},
		{"http.request_delay", c.HTTP.RequestDelay},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", field.name, field.value)
		}
	}
	return nil
}

// PageTimeoutDuration returns the parsed page fetch timeout
func (c *HTTPConfig) PageTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.PageTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// PDFTimeoutDuration returns the parsed PDF download timeout
func (c *HTTPConfig) PDFTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.PDFTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// RequestDelayDuration returns the parsed per-host request delay
func (c *HTTPConfig) RequestDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.RequestDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// HasOutput reports whether the logging config enables the given output
func (c *LoggingConfig) HasOutput(name string) bool {
	for _, output := range c.Output {
		if strings.EqualFold(output, name) || (name == "stdout" && strings.EqualFold(output, "console")) {
			return true
		}
	}
	return false
}
