package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiDim    = "\033[90m"
	ansiBold   = "\033[1m"
)

// sessionKey is lifted out of the attribute list into a short tag.
const sessionKey = "session"

// PrettyHandler writes one line per record for a console:
//
//	15:04:05 INFO  [1f3a9c2e] turn committed tokens=12 tps=40.10
//
// The bracketed tag is the leading part of a "session" attribute.
type PrettyHandler struct {
	level   slog.Leveler
	w       io.Writer
	color   bool
	mu      *sync.Mutex
	group   string
	session string
	attrs   []slog.Attr
}

// NewPrettyHandler returns a handler writing to w. A nil level means Info.
func NewPrettyHandler(w io.Writer, level slog.Leveler, color bool) *PrettyHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &PrettyHandler{level: level, w: w, color: color, mu: &sync.Mutex{}}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	session := h.session
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.group == "" && a.Key == sessionKey {
			session = a.Value.String()
			return true
		}
		attrs = append(attrs, qualify(h.group, a))
		return true
	})

	buf := make([]byte, 0, 256)
	buf = h.paint(buf, ansiDim, r.Time.Format(time.TimeOnly))
	buf = append(buf, ' ')
	buf = h.paint(buf, levelColor(r.Level)+ansiBold, fmt.Sprintf("%-5s", r.Level.String()))
	buf = append(buf, ' ')
	if session != "" {
		buf = h.paint(buf, ansiDim, "["+shortID(session)+"]")
		buf = append(buf, ' ')
	}
	buf = append(buf, r.Message...)
	if len(attrs) > 0 {
		var kv []byte
		for _, a := range attrs {
			kv = append(kv, ' ')
			kv = appendAttr(kv, a)
		}
		buf = h.paint(buf, ansiCyan, string(kv))
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.group == "" && a.Key == sessionKey {
			next.session = a.Value.String()
			continue
		}
		next.attrs = append(next.attrs, qualify(h.group, a))
	}
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = name
	if h.group != "" {
		next.group = h.group + "." + name
	}
	return &next
}

func (h *PrettyHandler) paint(buf []byte, code, s string) []byte {
	if !h.color {
		return append(buf, s...)
	}
	buf = append(buf, code...)
	buf = append(buf, s...)
	return append(buf, ansiReset...)
}

func qualify(group string, a slog.Attr) slog.Attr {
	if group != "" {
		a.Key = group + "." + a.Key
	}
	return a
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiBlue
	}
	return ansiDim
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); needsQuoting(s) {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, v.String()...)
	case slog.KindDuration:
		return append(buf, v.Duration().Round(time.Millisecond).String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindGroup:
		buf = append(buf, '{')
		for i, ga := range v.Group() {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendAttr(buf, ga)
		}
		return append(buf, '}')
	}
	return fmt.Append(buf, v.Any())
}

func needsQuoting(s string) bool {
	return s == "" || strings.ContainsAny(s, " \t\n\"=")
}
