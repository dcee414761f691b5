package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/session"
	"github.com/samcharles93/mchat/internal/tui"
)

func chatCmd() *cli.Command {
	return &cli.Command{
		Name:   "chat",
		Usage:  "Chat in the full screen terminal UI (default)",
		Action: runChat,
	}
}

func runChat(ctx context.Context, c *cli.Command) error {
	if !stdoutIsTTY() {
		return cli.Exit("error: chat needs a terminal; use mchat repl for piped input", 1)
	}
	a, err := setup(c, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := tui.New(ctx, tui.Options{
		State:    session.New("local", opts.greeting),
		Models:   a.cache,
		Registry: a.registry,
		Defaults: a.defaults,
		Log:      a.log,
		Markdown: true,
	})
	p := tui.NewProgram(ctx, m)
	go a.watchRegistry(ctx, func(reg *registry.Registry) {
		p.Send(tui.RegistryMsg{Registry: reg})
	})

	if _, err := p.Run(); err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	return nil
}
