// Package tui is the terminal chat front end.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/logger"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/session"
	"github.com/samcharles93/mchat/internal/turn"
)

type Options struct {
	State    *session.State
	Models   turn.Models
	Registry *registry.Registry
	// Defaults apply to the session until changed with the keys. An empty
	// model id selects the registry default.
	Defaults turn.Settings
	Log      logger.Logger
	// Markdown renders committed replies with glamour.
	Markdown bool
}

// RegistryMsg replaces the model list offered by the picker.
type RegistryMsg struct {
	Registry *registry.Registry
}

type chunkMsg struct {
	turn *turn.Turn
	text string
	err  error
}

type modelItem registry.Model

func (i modelItem) Title() string       { return i.Name }
func (i modelItem) Description() string { return i.ID }
func (i modelItem) FilterValue() string { return i.Name + " " + i.ID }

func listItems(r *registry.Registry) []list.Item {
	models := r.Models()
	items := make([]list.Item, len(models))
	for i, m := range models {
		items[i] = modelItem(m)
	}
	return items
}

// Model is the bubbletea model of a chat session. It is the presenter of
// its own turn controller.
type Model struct {
	ctx  context.Context
	ctrl *turn.Controller
	reg  *registry.Registry
	log  logger.Logger
	keys KeyMap

	input  textarea.Model
	view   viewport.Model
	picker list.Model
	spin   spinner.Model
	help   help.Model

	picking bool
	turn    *turn.Turn
	live    string
	err     error

	markdown bool
	md       *glamour.TermRenderer
	mdCache  map[string]string

	transcript strings.Builder
	redraw     rate.Sometimes
	width      int
	height     int
}

func New(ctx context.Context, opts Options) *Model {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New(registry.Builtin)
	}
	defaults := opts.Defaults
	if defaults.ModelID == "" {
		if d, ok := reg.Default(); ok {
			defaults.ModelID = d.ID
		}
	}

	ta := textarea.New()
	ta.Placeholder = "Your message"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	picker := list.New(listItems(reg), list.NewDefaultDelegate(), 60, 14)
	picker.Title = "Models"

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:      ctx,
		reg:      reg,
		log:      log,
		keys:     DefaultKeyMap(),
		input:    ta,
		view:     viewport.New(80, 20),
		picker:   picker,
		spin:     sp,
		help:     help.New(),
		markdown: opts.Markdown,
		mdCache:  make(map[string]string),
		redraw:   rate.Sometimes{Interval: 50 * time.Millisecond},
	}
	m.ctrl = turn.New(turn.Config{
		State:     opts.State,
		Models:    opts.Models,
		Defaults:  defaults.Clamp(),
		Presenter: m,
		Log:       log,
	})
	m.setMarkdownWidth(80)
	m.rebuild()
	return m
}

// NewProgram wraps m in a full screen program bound to ctx.
func NewProgram(ctx context.Context, m *Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
}

func (m *Model) Controller() *turn.Controller { return m.ctrl }

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// RenderMessage implements turn.Presenter.
func (m *Model) RenderMessage(role chat.Role, content string) {
	switch role {
	case chat.RoleUser:
		fmt.Fprintf(&m.transcript, "%s\n%s\n\n", userStyle.Render("You"), content)
	case chat.RoleAssistant:
		fmt.Fprintf(&m.transcript, "%s\n", assistantStyle.Render("Assistant"))
		thinking, answer := splitThinking(content)
		if thinking != "" {
			fmt.Fprintf(&m.transcript, "%s\n", thinkingStyle.Render(thinking))
		}
		fmt.Fprintf(&m.transcript, "%s\n\n", m.renderMarkdown(answer))
	}
}

func (m *Model) RequestRefresh() { m.rebuild() }

func (m *Model) StreamingPlaceholder() turn.Placeholder { return livePlaceholder{m} }

type livePlaceholder struct{ m *Model }

func (p livePlaceholder) Update(text string) { p.m.live = text }

func (m *Model) rebuild() {
	m.transcript.Reset()
	m.ctrl.Render(m)
	if m.turn != nil {
		fmt.Fprintf(&m.transcript, "%s\n%s\n\n", assistantStyle.Render("Assistant"), m.live)
	}
	if m.err != nil {
		fmt.Fprintf(&m.transcript, "%s\n", errorStyle.Render("error: "+m.err.Error()))
	}
	m.view.SetContent(m.transcript.String())
	m.view.GotoBottom()
}

func (m *Model) Transcript() string { return m.transcript.String() }

func (m *Model) setMarkdownWidth(width int) {
	if !m.markdown {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		m.log.Warn("markdown renderer unavailable", "error", err)
		m.md = nil
		return
	}
	m.md = r
	clear(m.mdCache)
}

func (m *Model) renderMarkdown(s string) string {
	if m.md == nil {
		return s
	}
	if out, ok := m.mdCache[s]; ok {
		return out
	}
	out, err := m.md.Render(s)
	if err != nil {
		return s
	}
	out = strings.Trim(out, "\n")
	m.mdCache[s] = out
	return out
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case RegistryMsg:
		return m, m.setRegistry(msg.Registry)
	case chunkMsg:
		return m, m.handleChunk(msg)
	case spinner.TickMsg:
		if m.turn == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return tea.Quit
	}
	if m.picking {
		return m.handlePickerKey(msg)
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return nil
	}
	// A running turn streams to completion; other keys wait for it.
	if m.turn != nil {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		m.input.Reset()
		m.err = nil
		m.ctrl.Submit(text)
		return m.start()
	case key.Matches(msg, m.keys.Forget):
		m.err = nil
		m.ctrl.Forget()
		return nil
	case key.Matches(msg, m.keys.Continue):
		if !m.ctrl.Continue() {
			return nil
		}
		m.err = nil
		return m.start()
	case key.Matches(msg, m.keys.Models):
		m.picking = true
		for i, it := range m.picker.Items() {
			if it.(modelItem).ID == m.ctrl.Settings().ModelID {
				m.picker.Select(i)
			}
		}
		return nil
	case key.Matches(msg, m.keys.TempUp):
		m.ctrl.SetSettings(m.ctrl.Settings().StepTemperature(1))
		return nil
	case key.Matches(msg, m.keys.TempDown):
		m.ctrl.SetSettings(m.ctrl.Settings().StepTemperature(-1))
		return nil
	case key.Matches(msg, m.keys.CtxUp):
		m.ctrl.SetSettings(m.ctrl.Settings().StepMaxSteps(1))
		return nil
	case key.Matches(msg, m.keys.CtxDown):
		m.ctrl.SetSettings(m.ctrl.Settings().StepMaxSteps(-1))
		return nil
	case msg.String() == "pgup" || msg.String() == "pgdown":
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) tea.Cmd {
	if m.picker.FilterState() != list.Filtering {
		switch msg.String() {
		case "esc":
			m.picking = false
			return nil
		case "enter":
			if it, ok := m.picker.SelectedItem().(modelItem); ok {
				s := m.ctrl.Settings()
				s.ModelID = it.ID
				m.ctrl.SetSettings(s)
				m.log.Info("model selected", "model", it.ID)
			}
			m.picking = false
			return nil
		}
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return cmd
}

// start begins the staged turn and schedules its first chunk.
func (m *Model) start() tea.Cmd {
	t, ok := m.ctrl.Begin()
	if !ok {
		return nil
	}
	m.turn = t
	m.StreamingPlaceholder().Update(t.Display())
	m.rebuild()
	return tea.Batch(m.spin.Tick, m.next(t))
}

func (m *Model) next(t *turn.Turn) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		text, err := t.Next(ctx)
		return chunkMsg{turn: t, text: text, err: err}
	}
}

func (m *Model) handleChunk(msg chunkMsg) tea.Cmd {
	if msg.turn != m.turn {
		return nil
	}
	switch {
	case errors.Is(msg.err, io.EOF):
		m.ctrl.Commit(m.turn)
		m.finish(nil)
		return nil
	case msg.err != nil:
		m.ctrl.Abort(m.turn, msg.err)
		m.finish(msg.err)
		return nil
	}
	m.StreamingPlaceholder().Update(msg.text)
	m.redraw.Do(m.rebuild)
	return m.next(m.turn)
}

func (m *Model) finish(err error) {
	m.turn = nil
	m.live = ""
	m.err = err
	m.rebuild()
}

func (m *Model) setRegistry(r *registry.Registry) tea.Cmd {
	if r == nil {
		return nil
	}
	m.reg = r
	return m.picker.SetItems(listItems(r))
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.SetWidth(width)
	m.help.Width = width
	m.view.Width = width
	m.view.Height = max(height-m.input.Height()-3, 3)
	m.picker.SetSize(min(width-4, 60), max(height-6, 5))
	m.setMarkdownWidth(width)
	m.rebuild()
}

func (m *Model) status() string {
	s := m.ctrl.Settings()
	line := fmt.Sprintf("temperature %.1f · context %d", s.Temperature, s.MaxSteps)
	if m.turn != nil {
		line = m.spin.View() + " generating · " + line
	}
	return statusStyle.Render(line)
}

func (m *Model) View() string {
	header := titleStyle.Render("MLX Chat") + "  " + statusStyle.Render(m.reg.DisplayName(m.ctrl.Settings().ModelID))
	if m.picking {
		return lipgloss.JoinVertical(lipgloss.Left, header, pickerStyle.Render(m.picker.View()), m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.view.View(),
		m.status(),
		m.input.View(),
		m.help.View(m.keys),
	)
}
