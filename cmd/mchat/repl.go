package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/session"
	"github.com/samcharles93/mchat/internal/turn"
)

func replCmd() *cli.Command {
	var streamMode string

	return &cli.Command{
		Name:  "repl",
		Usage: "Chat line by line on stdin and stdout",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "stream-mode",
				Usage:       "how replies are printed (instant, smooth, typewriter, quiet)",
				Value:       string(StreamInstant),
				Destination: &streamMode,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			mode, err := parseStreamMode(streamMode)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			a, err := setup(c, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			r := &repl{
				reg:    a.registry,
				out:    os.Stdout,
				errOut: os.Stderr,
				mode:   mode,
			}
			r.ctrl = turn.New(turn.Config{
				State:     session.New("repl", opts.greeting),
				Models:    a.cache,
				Defaults:  a.defaults,
				Presenter: r,
				Log:       a.log,
			})
			if stdinIsTTY() {
				r.pick = promptModel
				if opts.model == "" && a.registry.Len() > 1 {
					r.command(ctx, "/models")
				}
			}
			return r.loop(ctx, newLineEditor(os.Stdin, os.Stdout))
		},
	}
}

type lineReader interface {
	ReadLine(prompt string) (string, error)
}

// repl is the line mode front end. It presents its controller's turns by
// printing the new part of every update.
type repl struct {
	ctrl   *turn.Controller
	reg    *registry.Registry
	out    io.Writer
	errOut io.Writer
	mode   StreamMode
	// pick chooses a model interactively; nil lists them instead.
	pick func(models []registry.Model, current string) (string, error)

	live  *StreamWriter
	shown string
}

func (r *repl) RenderMessage(role chat.Role, content string) {
	if role == chat.RoleSystem {
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %s\n", role, content)
}

func (r *repl) RequestRefresh() {}

func (r *repl) StreamingPlaceholder() turn.Placeholder { return r }

func (r *repl) Update(text string) {
	plain := strings.TrimSuffix(text, turn.Cursor)
	if delta, ok := strings.CutPrefix(plain, r.shown); ok {
		r.live.Write(delta)
	} else {
		r.live.Write("\n" + plain)
	}
	r.shown = plain
}

func (r *repl) loop(ctx context.Context, in lineReader) error {
	r.ctrl.Render(r)
	_, _ = fmt.Fprintln(r.errOut, "Type /help for commands, /exit to quit.")
	for ctx.Err() == nil {
		line, err := in.ReadLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.handle(ctx, line) {
			return nil
		}
	}
	return nil
}

// handle processes one input line and reports whether to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	if strings.HasPrefix(line, "/") {
		return r.command(ctx, line)
	}
	r.ctrl.Submit(line)
	r.runTurn(ctx)
	return false
}

func (r *repl) runTurn(ctx context.Context) {
	r.shown = ""
	r.live = NewStreamWriter(r.out, r.mode)
	_, _ = fmt.Fprint(r.out, "assistant: ")
	err := r.ctrl.Run(ctx, r)
	r.live.Flush()
	_, _ = fmt.Fprintln(r.out)
	if err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
	}
}

const replHelp = `Commands:
  /forget          start over from the greeting
  /continue        regenerate the last reply from all but its last line
  /model [id]      show or switch the model
  /models          choose a model from the registry
  /temp <x>        set the temperature (0-1)
  /ctx <n>         set the context length (100-32000)
  /system [text]   show or set the system prompt
  /history         print the conversation
  /exit            quit`

func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	s := r.ctrl.Settings()

	switch name {
	case "exit", "quit":
		return true
	case "help":
		_, _ = fmt.Fprintln(r.out, replHelp)
	case "forget":
		r.ctrl.Forget()
		r.ctrl.Render(r)
	case "continue":
		if !r.ctrl.Continue() {
			_, _ = fmt.Fprintln(r.errOut, "nothing to continue")
			return false
		}
		r.runTurn(ctx)
	case "model":
		if arg == "" {
			_, _ = fmt.Fprintf(r.out, "model: %s (%s)\n", r.reg.DisplayName(s.ModelID), s.ModelID)
			return false
		}
		r.setModel(arg)
	case "models":
		if r.pick == nil {
			for _, m := range r.reg.Models() {
				_, _ = fmt.Fprintf(r.out, "  %s | %s\n", m.ID, m.Name)
			}
			return false
		}
		id, err := r.pick(r.reg.Models(), s.ModelID)
		if err != nil {
			_, _ = fmt.Fprintf(r.errOut, "model selection: %v\n", err)
			return false
		}
		r.setModel(id)
	case "temp", "temperature":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			_, _ = fmt.Fprintf(r.errOut, "invalid temperature %q\n", arg)
			return false
		}
		s.Temperature = v
		s = r.ctrl.SetSettings(s)
		_, _ = fmt.Fprintf(r.out, "temperature: %.1f\n", s.Temperature)
	case "ctx", "context":
		v, err := strconv.Atoi(arg)
		if err != nil {
			_, _ = fmt.Fprintf(r.errOut, "invalid context length %q\n", arg)
			return false
		}
		s.MaxSteps = v
		s = r.ctrl.SetSettings(s)
		_, _ = fmt.Fprintf(r.out, "context length: %d\n", s.MaxSteps)
	case "system":
		if arg == "" {
			_, _ = fmt.Fprintf(r.out, "system: %s\n", s.SystemPrompt)
			return false
		}
		s.SystemPrompt = arg
		r.ctrl.SetSettings(s)
	case "history":
		r.ctrl.Render(r)
	default:
		_, _ = fmt.Fprintf(r.errOut, "unknown command /%s (try /help)\n", name)
	}
	return false
}

func (r *repl) setModel(id string) {
	if _, ok := r.reg.Lookup(id); !ok {
		_, _ = fmt.Fprintf(r.errOut, "warning: %s is not in the registry\n", id)
	}
	s := r.ctrl.Settings()
	s.ModelID = id
	r.ctrl.SetSettings(s)
	_, _ = fmt.Fprintf(r.out, "model: %s\n", r.reg.DisplayName(id))
}

func promptModel(models []registry.Model, current string) (string, error) {
	if len(models) == 0 {
		return "", errors.New("registry is empty")
	}
	labels := make([]string, len(models))
	pos := 0
	for i, m := range models {
		labels[i] = fmt.Sprintf("%s (%s)", m.Name, m.ID)
		if m.ID == current {
			pos = i
		}
	}
	sel := promptui.Select{
		Label:     "Select a model",
		Items:     labels,
		Size:      min(len(labels), 10),
		CursorPos: pos,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(labels[index]), strings.ToLower(input))
		},
	}
	idx, _, err := sel.Run()
	if err != nil {
		return "", err
	}
	return models[idx].ID, nil
}
