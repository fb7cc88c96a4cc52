// Package config loads doc-assistant settings from a YAML file, a .env file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/doc-assistant/internal/domain"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "doc-assistant.yaml"

// Config holds all configuration for doc-assistant.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Relay    RelayConfig    `yaml:"relay"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	OCR      OCRConfig      `yaml:"ocr"`
	DataDir  string         `yaml:"data_dir"`
}

// LLMConfig points at the local completion server.
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

// AnalysisConfig holds chunking limits.
type AnalysisConfig struct {
	ChunkPages   int `yaml:"chunk_pages"`
	CharCap      int `yaml:"char_cap"`
	ContextChars int `yaml:"context_chars"`
}

// RelayConfig holds presentation loop settings.
type RelayConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// LogConfig holds logging settings. File is used when the terminal is owned
// by the interactive UI.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// OCRConfig holds OCR settings.
type OCRConfig struct {
	Language string `yaml:"language"`
}

// Load reads configuration from path and applies environment overrides. An
// empty path falls back to DefaultFile when it exists.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.DataDir, "doc-assistant.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("validate config", err)
	}

	return cfg, nil
}

// DefaultConfig returns the settings used with no file and no environment.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:   "http://127.0.0.1:8080/v1",
			Model:     "phi-3.5-mini-instruct",
			MaxTokens: 400,
		},
		Analysis: AnalysisConfig{
			ChunkPages:   3,
			CharCap:      3000,
			ContextChars: 3000,
		},
		Relay: RelayConfig{
			PollInterval: 100 * time.Millisecond,
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		OCR: OCRConfig{
			Language: "eng",
		},
		DataDir: defaultDataDir(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url is required")
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("invalid llm.max_tokens: %d", c.LLM.MaxTokens)
	}
	if c.Analysis.ChunkPages < 1 {
		return fmt.Errorf("invalid analysis.chunk_pages: %d", c.Analysis.ChunkPages)
	}
	if c.Analysis.CharCap < 1 || c.Analysis.ContextChars < 1 {
		return errors.New("analysis.char_cap and analysis.context_chars must be positive")
	}
	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("invalid relay.poll_interval: %s", c.Relay.PollInterval)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "doc-assistant")
	}
	return filepath.Join(os.TempDir(), "doc-assistant")
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCASSIST_LLM_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("DOCASSIST_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("DOCASSIST_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("DOCASSIST_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
