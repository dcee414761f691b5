package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/engine"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/turn"
)

// options collects every flag. Config file values are merged in by
// applyConfig for flags the user did not set.
type options struct {
	configFile    string
	modelsFile    string
	model         string
	systemPrompt  string
	contextLength int64
	temperature   float64
	seed          int64
	topK          int64
	topP          float64
	greeting      string
	defaultScheme string
	openAIBaseURL string
	openAIKey     string

	logLevel  string
	logFormat string
	logFile   string
	debug     bool

	stops engine.StopTable
}

var opts options

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &opts.configFile,
		},
		&cli.StringFlag{
			Name:        "models-file",
			Usage:       "model registry file (identifier | display name per line)",
			Value:       registry.DefaultFile,
			Sources:     cli.EnvVars("MCHAT_MODELS_FILE"),
			Destination: &opts.modelsFile,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model identifier (default: first registry entry)",
			Destination: &opts.model,
		},
		&cli.StringFlag{
			Name:        "system-prompt",
			Aliases:     []string{"system", "sys"},
			Usage:       "system prompt sent with every turn",
			Value:       turn.DefaultSystemPrompt,
			Destination: &opts.systemPrompt,
		},
		&cli.Int64Flag{
			Name:        "context-length",
			Aliases:     []string{"ctx", "c"},
			Usage:       "maximum tokens per reply (100-32000)",
			Value:       turn.DefaultMaxSteps,
			Destination: &opts.contextLength,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature (0-1)",
			Value:       turn.DefaultTemperature,
			Destination: &opts.temperature,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling seed (0 = random per turn)",
			Destination: &opts.seed,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Usage:       "top-k sampling for local models (0 = off)",
			Destination: &opts.topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Usage:       "top-p sampling for local models (0 = off)",
			Destination: &opts.topP,
		},
		&cli.StringFlag{
			Name:        "greeting",
			Usage:       "assistant greeting that opens every conversation",
			Value:       chat.DefaultGreeting,
			Destination: &opts.greeting,
		},
		&cli.StringFlag{
			Name:        "default-scheme",
			Usage:       "backend for identifiers without a known scheme (toy, openai)",
			Value:       "toy",
			Destination: &opts.defaultScheme,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "base URL of an OpenAI compatible completions server",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &opts.openAIBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "API key for the completions server",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &opts.openAIKey,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &opts.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "console log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &opts.logFormat,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "also write JSON logs to this file",
			Destination: &opts.logFile,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging, including full prompts (shorthand for --log-level=debug)",
			Destination: &opts.debug,
		},
	}
}
