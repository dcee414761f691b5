package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mchat/internal/engine"
	"github.com/samcharles93/mchat/internal/logger"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/turn"
)

// app holds what every front end shares: logger, registry and model cache.
type app struct {
	cfg      Config
	log      logger.Logger
	logClose io.Closer
	registry *registry.Registry
	cache    *engine.Cache
	defaults turn.Settings
}

// setup loads configuration and builds the shared runtime. Console logs go
// to console; nil keeps the terminal clean for full screen UIs.
func setup(c *cli.Command, console io.Writer) (*app, error) {
	cfg, err := LoadConfig(configPath(opts.configFile))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	applyConfig(c, cfg, &opts)

	level := logger.ParseLevel(opts.logLevel)
	if opts.debug {
		level = logger.ParseLevel("debug")
	}
	log, closer, err := logger.Open(logger.Options{
		Level:   level,
		Format:  opts.logFormat,
		Console: console,
		NoColor: os.Getenv("NO_COLOR") != "",
		File:    opts.logFile,
	})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}

	a := &app{cfg: cfg, log: log, logClose: closer}
	a.registry = loadRegistry(opts.modelsFile, log)
	a.cache = engine.NewCache(newMux(opts), log)
	a.defaults = defaultSettings(opts, a.registry)
	log.Debug("setup complete", "models_file", opts.modelsFile, "models", a.registry.Len(),
		"model", a.defaults.ModelID, "default_scheme", opts.defaultScheme)
	return a, nil
}

func (a *app) Close() error {
	return errors.Join(a.cache.Close(), a.logClose.Close())
}

func newMux(o options) *engine.Mux {
	mux := engine.NewMux(o.defaultScheme)
	mux.Register("toy", &engine.ToyBackend{
		Seed:  o.seed,
		Stops: o.stops,
		TopK:  int(o.topK),
		TopP:  o.topP,
	})
	mux.Register("openai", engine.NewOpenAIBackend(engine.OpenAIConfig{
		BaseURL: o.openAIBaseURL,
		APIKey:  o.openAIKey,
	}))
	return mux
}

func defaultSettings(o options, reg *registry.Registry) turn.Settings {
	s := turn.Settings{
		ModelID:      o.model,
		SystemPrompt: o.systemPrompt,
		MaxSteps:     int(o.contextLength),
		Temperature:  o.temperature,
		Seed:         o.seed,
	}
	if s.ModelID == "" {
		if m, ok := reg.Default(); ok {
			s.ModelID = m.ID
		}
	}
	return s.Clamp()
}

// loadRegistry reads path, logging skipped lines. It always returns a
// usable registry.
func loadRegistry(path string, log logger.Logger) *registry.Registry {
	reg, err := registry.Load(path)
	reportRegistryErr(path, err, log)
	if reg == nil {
		return registry.New(registry.Builtin)
	}
	return reg
}

func reportRegistryErr(path string, err error, log logger.Logger) {
	if err == nil {
		return
	}
	lines := registry.LineErrors(err)
	for _, le := range lines {
		log.Warn("skipping registry line", "file", path, "line", le.Line, "reason", le.Reason, "text", le.Text)
	}
	if len(lines) == 0 {
		log.Warn("reading model registry", "file", path, "error", err)
	}
}

// watchRegistry reloads the registry on change and hands each new version
// to fn until ctx is done.
func (a *app) watchRegistry(ctx context.Context, fn func(*registry.Registry)) {
	path := opts.modelsFile
	err := registry.Watch(ctx, path, registry.DefaultDebounce, a.log, func(reg *registry.Registry, err error) {
		reportRegistryErr(path, err, a.log)
		if reg != nil {
			a.log.Info("model registry reloaded", "file", path, "models", reg.Len())
			fn(reg)
		}
	})
	if err != nil && ctx.Err() == nil {
		a.log.Warn("registry watch stopped", "file", path, "error", err)
	}
}
