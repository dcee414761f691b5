package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

func modelsCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "models",
		Usage: "List the models in the registry file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print JSON instead of a table",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := setup(c, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			models := a.registry.Models()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(models)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\t")
			for _, m := range models {
				marker := ""
				if m.ID == a.defaults.ModelID {
					marker = "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Name, marker)
			}
			return w.Flush()
		},
	}
}
