package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mchat/internal/version"
)

func main() {
	app := &cli.Command{
		Name:    "mchat",
		Usage:   "Chat with local and remote language models",
		Version: version.String(),
		Flags:   slices.Concat(sessionFlags(), loggingFlags()),
		Action:  runChat,
		Commands: []*cli.Command{
			chatCmd(),
			replCmd(),
			serveCmd(),
			modelsCmd(),
			versionCmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
