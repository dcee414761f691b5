// Package api serves chat sessions over HTTP. Replies stream as server-sent
// events.
package api

import (
	"io"
	"net/http"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/mchat/internal/logger"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/session"
	"github.com/samcharles93/mchat/internal/turn"
	"github.com/samcharles93/mchat/internal/webui"
)

type Config struct {
	Sessions *session.Store
	Models   turn.Models
	Registry *registry.Registry
	// Defaults seed the settings of new sessions. An empty model id is
	// replaced by the registry default.
	Defaults turn.Settings
	Log      logger.Logger
}

type Server struct {
	sessions *session.Store
	models   turn.Models
	registry atomic.Pointer[registry.Registry]
	defaults turn.Settings
	log      logger.Logger
}

func NewServer(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		sessions: cfg.Sessions,
		models:   cfg.Models,
		defaults: cfg.Defaults.Clamp(),
		log:      log,
	}
	reg := cfg.Registry
	if reg == nil {
		reg = registry.New(registry.Builtin)
	}
	s.registry.Store(reg)
	return s
}

// SetRegistry swaps the model list offered to clients. Sessions keep the
// model they selected.
func (s *Server) SetRegistry(r *registry.Registry) {
	if r != nil {
		s.registry.Store(r)
	}
}

func (s *Server) Registry() *registry.Registry { return s.registry.Load() }

func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleIndex)
	e.GET("/app.js", s.handleAsset("app.js", "text/javascript; charset=utf-8"))
	e.GET("/api/models", s.handleListModels)
	e.POST("/api/sessions", s.handleCreateSession)
	e.GET("/api/sessions/:id", s.handleGetSession)
	e.DELETE("/api/sessions/:id", s.handleDeleteSession)
	e.PATCH("/api/sessions/:id/settings", s.handleUpdateSettings)
	e.POST("/api/sessions/:id/messages", s.handleSendMessage)
	e.POST("/api/sessions/:id/continue", s.handleContinue)
	e.POST("/api/sessions/:id/forget", s.handleForget)
}

func (s *Server) handleIndex(c *echo.Context) error {
	return s.handleAsset("index.html", "text/html; charset=utf-8")(c)
}

func (s *Server) handleAsset(name, contentType string) func(c *echo.Context) error {
	return func(c *echo.Context) error {
		b, err := webui.Asset(name)
		if err != nil {
			return writeNotFound(c, "asset not found")
		}
		res := c.Response()
		res.Header().Set(echo.HeaderContentType, contentType)
		res.WriteHeader(http.StatusOK)
		_, err = res.Write(b)
		return err
	}
}

func (s *Server) handleListModels(c *echo.Context) error {
	reg := s.Registry()
	resp := ModelsResponse{Models: reg.Models()}
	if m, ok := reg.Default(); ok {
		resp.Default = m.ID
	}
	if l, ok := s.models.(loadedLister); ok {
		resp.Loaded = l.Loaded()
	}
	return writeJSON(c, http.StatusOK, resp)
}

// loadedLister is implemented by model sources that keep loads resident.
type loadedLister interface {
	Loaded() []string
}

// newDefaults returns the settings a new session starts with.
func (s *Server) newDefaults() turn.Settings {
	d := s.defaults
	if d.ModelID == "" {
		if m, ok := s.Registry().Default(); ok {
			d.ModelID = m.ID
		}
	}
	return d
}

func (s *Server) controller(st *session.State, p turn.Presenter) *turn.Controller {
	return turn.New(turn.Config{
		State:     st,
		Models:    s.models,
		Defaults:  s.newDefaults(),
		Presenter: p,
		Log:       s.log,
	})
}

func sessionResponse(ctrl *turn.Controller) SessionResponse {
	return SessionResponse{
		ID:       ctrl.State().ID,
		Messages: ctrl.Messages(),
		Settings: ctrl.Settings(),
		Phase:    ctrl.Phase().String(),
	}
}

func writeJSON(c *echo.Context, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	_, err = res.Write(b)
	return err
}

func writeNoContent(c *echo.Context) error {
	c.Response().WriteHeader(http.StatusNoContent)
	return nil
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var v T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, newInvalidRequest("invalid JSON body: " + err.Error())
	}
	return v, nil
}
