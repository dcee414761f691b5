package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the mchat configuration file (~/.config/mchat/config.yaml).
// Pointer fields tell "not set" apart from zero values.
type Config struct {
	ModelsFile    string   `yaml:"models_file"`
	Model         string   `yaml:"model"`
	SystemPrompt  *string  `yaml:"system_prompt"`
	ContextLength *int64   `yaml:"context_length"`
	Temperature   *float64 `yaml:"temperature"`
	Seed          *int64   `yaml:"seed"`
	TopK          *int64   `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	Greeting      string   `yaml:"greeting"`
	DefaultScheme string   `yaml:"default_scheme"`

	OpenAI struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"openai"`

	// StopTokenIDs maps model identifiers to literal stop ids. The
	// "default" key covers unlisted models.
	StopTokenIDs map[string][]int `yaml:"stop_token_ids"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	ServerAddress string        `yaml:"server_address"`
	SessionIdle   time.Duration `yaml:"session_idle"`
}

func configPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mchat", "config.yaml")
}

// LoadConfig reads the config file. A missing file is a zero Config.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig copies config values into o for flags that were not set on
// the command line or through the environment.
func applyConfig(c *cli.Command, cfg Config, o *options) {
	if cfg.ModelsFile != "" && !c.IsSet("models-file") {
		o.modelsFile = cfg.ModelsFile
	}
	if cfg.Model != "" && !c.IsSet("model") {
		o.model = cfg.Model
	}
	if cfg.SystemPrompt != nil && !c.IsSet("system-prompt") {
		o.systemPrompt = *cfg.SystemPrompt
	}
	if cfg.ContextLength != nil && !c.IsSet("context-length") {
		o.contextLength = *cfg.ContextLength
	}
	if cfg.Temperature != nil && !c.IsSet("temperature") {
		o.temperature = *cfg.Temperature
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		o.seed = *cfg.Seed
	}
	if cfg.TopK != nil && !c.IsSet("top-k") {
		o.topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top-p") {
		o.topP = *cfg.TopP
	}
	if cfg.Greeting != "" && !c.IsSet("greeting") {
		o.greeting = cfg.Greeting
	}
	if cfg.DefaultScheme != "" && !c.IsSet("default-scheme") {
		o.defaultScheme = cfg.DefaultScheme
	}
	if cfg.OpenAI.BaseURL != "" && !c.IsSet("openai-base-url") {
		o.openAIBaseURL = cfg.OpenAI.BaseURL
	}
	if cfg.OpenAI.APIKey != "" && !c.IsSet("openai-api-key") {
		o.openAIKey = cfg.OpenAI.APIKey
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		o.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		o.logFormat = cfg.LogFormat
	}
	if cfg.LogFile != "" && !c.IsSet("log-file") {
		o.logFile = cfg.LogFile
	}
	o.stops = cfg.StopTokenIDs
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, idle *time.Duration) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.SessionIdle > 0 && !c.IsSet("session-idle") {
		*idle = cfg.SessionIdle
	}
}
