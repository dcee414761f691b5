// Package turn drives one conversation: it stages prompts from user actions,
// streams the reply and commits it to the transcript.
package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/inference"
	"github.com/samcharles93/mchat/internal/logger"
	"github.com/samcharles93/mchat/internal/session"
)

// Phase is where a session sits in the turn cycle.
type Phase int

const (
	Idle Phase = iota
	PromptQueued
	Streaming
	Committed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PromptQueued:
		return "prompt_queued"
	case Streaming:
		return "streaming"
	case Committed:
		return "committed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Cursor trails the text of a reply that is still streaming.
const Cursor = "▌"

// Models resolves a model identifier to a generator, loading it if needed.
type Models interface {
	Generator(ctx context.Context, id string) (inference.Generator, error)
}

// Presenter is the display surface a controller renders to.
type Presenter interface {
	RenderMessage(role chat.Role, content string)
	StreamingPlaceholder() Placeholder
	RequestRefresh()
}

// Placeholder is the slot a streaming reply is drawn into. Each Update
// replaces the previous text.
type Placeholder interface {
	Update(text string)
}

type Config struct {
	State  *session.State
	Models Models
	// Defaults apply until settings are saved on the session.
	Defaults  Settings
	Presenter Presenter
	Log       logger.Logger
}

// Controller is a view over one session.State. Several controllers may be
// built for the same state; everything they track lives in the state.
type Controller struct {
	state     *session.State
	models    Models
	defaults  Settings
	presenter Presenter
	log       logger.Logger
}

func New(cfg Config) *Controller {
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{
		state:     cfg.State,
		models:    cfg.Models,
		defaults:  cfg.Defaults,
		presenter: cfg.Presenter,
		log:       log.With("session", cfg.State.ID),
	}
}

func (c *Controller) State() *session.State { return c.state }

func (c *Controller) Messages() []chat.Message { return c.state.Conversation.Messages() }

func (c *Controller) Settings() Settings { return loadSettings(c.state, c.defaults) }

// SetSettings clamps s and stores it on the session.
func (c *Controller) SetSettings(s Settings) Settings {
	s = s.Clamp()
	c.state.Set(keySettings, s)
	return s
}

func (c *Controller) Phase() Phase {
	if v, ok := c.state.Get(keyPhase); ok {
		if p, ok := v.(Phase); ok {
			return p
		}
	}
	return Idle
}

func (c *Controller) setPhase(p Phase) {
	c.state.Set(keyPhase, p)
}

// settle returns an aborted or finished turn to Idle before a new
// interaction.
func (c *Controller) settle() {
	if p := c.Phase(); p == Streaming || p == Committed {
		c.setPhase(Idle)
	}
}

func (c *Controller) refresh() {
	if c.presenter != nil {
		c.presenter.RequestRefresh()
	}
}

// Submit appends a user message and stages a prompt replaying the visible
// history after the greeting.
func (c *Controller) Submit(text string) {
	c.settle()
	conv := c.state.Conversation
	conv.Append(chat.User(text))

	msgs := make([]chat.Message, 0, conv.Len()+1)
	msgs = append(msgs, chat.System(c.Settings().SystemPrompt))
	msgs = append(msgs, conv.Memory()...)
	msgs = append(msgs, chat.User(text))
	prompt := chat.TrimForGeneration(chat.Format(msgs, true))

	c.state.Stage(prompt, "")
	c.setPhase(PromptQueued)
	c.log.Debug("user message staged", "chars", len(text), "history", len(msgs)-2)
	c.refresh()
}

// Continue replaces the last reply with a regeneration seeded by all but its
// final line. It reports false and changes nothing when there is no exchange
// to continue.
func (c *Controller) Continue() bool {
	conv := c.state.Conversation
	user, ok := conv.LastUser()
	if !ok {
		return false
	}
	prev, ok := conv.LastResponse()
	if !ok {
		return false
	}
	c.settle()

	// The prompt loses trailing newlines of the seed; the seed shown to the
	// user keeps them.
	seed := dropLastLine(prev)
	prompt := chat.TrimForGeneration(chat.Format([]chat.Message{
		chat.System(c.Settings().SystemPrompt),
		chat.User(user),
		chat.Assistant(seed),
	}, false))

	conv.RemoveLastResponse()
	c.state.Stage(prompt, seed)
	c.setPhase(PromptQueued)
	c.log.Debug("continuation staged", "seed_chars", len(seed))
	c.refresh()
	return true
}

// promptSections summarises a ChatML prompt as role:length pairs. An open
// trailing section is marked with "+".
func promptSections(prompt string) []string {
	msgs, open := chat.Parse(prompt)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = fmt.Sprintf("%s:%d", m.Role, len(m.Content))
	}
	if open && len(out) > 0 {
		out[len(out)-1] += "+"
	}
	return out
}

func dropLastLine(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) > 1 {
		return strings.Join(lines[:len(lines)-1], "\n")
	}
	return s
}

// Forget resets the transcript to the greeting and drops anything staged.
func (c *Controller) Forget() {
	c.state.Conversation.Reset()
	c.state.ClearPending()
	c.setPhase(Idle)
	c.log.Debug("conversation reset")
	c.refresh()
}

// Render draws every transcript message.
func (c *Controller) Render(p Presenter) {
	for _, m := range c.state.Conversation.Messages() {
		p.RenderMessage(m.Role, m.Content)
	}
}

// Turn is one streaming reply.
type Turn struct {
	c        *Controller
	Prompt   string
	Seed     string
	settings Settings

	stream   inference.Stream
	response string
	finished bool
}

// Begin moves a staged prompt into streaming. It returns false when nothing
// is staged.
func (c *Controller) Begin() (*Turn, bool) {
	p, ok := c.state.Pending()
	if !ok {
		return nil, false
	}
	c.state.ClearPending()
	c.setPhase(Streaming)
	s := c.Settings()
	if s.Seed == 0 {
		s.Seed = rand.Int64()
	}
	return &Turn{c: c, Prompt: p.Prompt, Seed: p.Continuation, settings: s, response: p.Continuation}, true
}

// Display is the reply so far followed by the cursor.
func (t *Turn) Display() string { return t.response + Cursor }

// Text is the reply so far.
func (t *Turn) Text() string { return t.response }

// Next pulls one chunk and returns the updated display text. It returns
// io.EOF with the final text once generation has ended. The model is
// resolved on the first call.
func (t *Turn) Next(ctx context.Context) (string, error) {
	if t.finished {
		return t.response, io.EOF
	}
	if t.stream == nil {
		gen, err := t.c.models.Generator(ctx, t.settings.ModelID)
		if err != nil {
			return t.Display(), err
		}
		t.c.log.Debug("generating", "model", t.settings.ModelID, "max_steps", t.settings.MaxSteps,
			"temperature", t.settings.Temperature, "sections", promptSections(t.Prompt), "prompt", t.Prompt)
		t.stream, err = gen.Generate(ctx, inference.Request{
			Prompt:      t.Prompt,
			MaxSteps:    t.settings.MaxSteps,
			Temperature: t.settings.Temperature,
			Seed:        t.settings.Seed,
		})
		if err != nil {
			return t.Display(), err
		}
	}
	chunk, err := t.stream.Next()
	if errors.Is(err, io.EOF) {
		return t.response, io.EOF
	}
	if err != nil {
		return t.Display(), err
	}
	t.response = stripArtifacts(t.response + chunk)
	return t.Display(), nil
}

// stripArtifacts removes replacement characters left by undecodable bytes.
func stripArtifacts(s string) string {
	return strings.ReplaceAll(s, "�", "")
}

func (t *Turn) close() {
	t.finished = true
	if t.stream != nil {
		if err := t.stream.Close(); err != nil {
			t.c.log.Warn("closing stream", "error", err)
		}
	}
}

// Commit appends the reply to the transcript and returns the session to Idle.
func (c *Controller) Commit(t *Turn) chat.Message {
	msg := chat.Assistant(t.response)
	if t.finished {
		return msg
	}
	t.close()
	if rep, ok := t.stream.(inference.StatsReporter); ok {
		st := rep.Stats()
		c.log.Info("turn committed", "tokens", st.TokensGenerated, "tps", fmt.Sprintf("%.2f", st.TPS))
	}
	c.state.Conversation.Append(msg)
	c.setPhase(Committed)
	c.setPhase(Idle)
	return msg
}

// Abort discards a failed turn. Nothing is committed and the session stays
// in Streaming until the next interaction.
func (c *Controller) Abort(t *Turn, err error) {
	if t.finished {
		return
	}
	t.close()
	c.log.Error("generation failed", "model", t.settings.ModelID, "error", err)
}

// Run streams a staged prompt into p and commits it. It does nothing when
// nothing is staged.
func (c *Controller) Run(ctx context.Context, p Presenter) error {
	t, ok := c.Begin()
	if !ok {
		return nil
	}
	ph := p.StreamingPlaceholder()
	ph.Update(t.Display())
	for {
		text, err := t.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.Abort(t, err)
			return err
		}
		ph.Update(text)
	}
	ph.Update(c.Commit(t).Content)
	return nil
}
