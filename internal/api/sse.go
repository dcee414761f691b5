package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/turn"
)

// sseWriter presents a turn as server-sent events. It implements
// turn.Presenter and turn.Placeholder.
type sseWriter struct {
	w       io.Writer
	flusher func()
	ctrl    *turn.Controller
	shown   string
	err     error
}

func newSSEWriter(c *echo.Context, ctrl *turn.Controller) (*sseWriter, error) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	res.WriteHeader(http.StatusOK)
	return &sseWriter{w: res, flusher: flusher.Flush, ctrl: ctrl}, nil
}

func (s *sseWriter) RenderMessage(chat.Role, string) {}

func (s *sseWriter) RequestRefresh() {
	s.send(StreamEvent{Type: eventRefresh, Messages: s.ctrl.Messages()})
}

func (s *sseWriter) StreamingPlaceholder() turn.Placeholder { return s }

// Update sends the text added since the previous update along with the full
// display text.
func (s *sseWriter) Update(text string) {
	plain := strings.TrimSuffix(text, turn.Cursor)
	delta := strings.TrimPrefix(plain, s.shown)
	if !strings.HasPrefix(plain, s.shown) {
		delta = plain
	}
	s.shown = plain
	s.send(StreamEvent{Type: eventDelta, Delta: delta, Display: text})
}

func (s *sseWriter) done(msg chat.Message) {
	s.send(StreamEvent{Type: eventDone, Message: &msg, Messages: s.ctrl.Messages()})
}

func (s *sseWriter) fail(err error) {
	s.send(StreamEvent{Type: eventError, Error: err.Error()})
}

func (s *sseWriter) close() {
	if s.err == nil {
		_, s.err = fmt.Fprint(s.w, "data: [DONE]\n\n")
	}
	s.flusher()
}

// send writes one event. After the first write error the client is gone and
// later events are dropped.
func (s *sseWriter) send(ev StreamEvent) {
	if s.err != nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		s.err = err
		return
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		s.err = err
		return
	}
	s.flusher()
}
