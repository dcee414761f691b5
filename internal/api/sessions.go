package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/mchat/internal/session"
	"github.com/samcharles93/mchat/internal/turn"
)

func (s *Server) handleCreateSession(c *echo.Context) error {
	st := s.sessions.Create()
	s.log.Info("session created", "session", st.ID)
	return writeJSON(c, http.StatusCreated, sessionResponse(s.controller(st, nil)))
}

// acquire looks up the session named in the path and takes its busy lock.
// On failure the error response has already been written and ok is false.
func (s *Server) acquire(c *echo.Context) (st *session.State, ok bool, err error) {
	st, err = s.sessions.Acquire(c.Param("id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil, false, writeNotFound(c, "session not found")
	case errors.Is(err, session.ErrBusy):
		return nil, false, writeBusy(c)
	case err != nil:
		return nil, false, err
	}
	return st, true, nil
}

func (s *Server) handleGetSession(c *echo.Context) error {
	st, ok, err := s.acquire(c)
	if !ok {
		return err
	}
	defer st.Release()
	return writeJSON(c, http.StatusOK, sessionResponse(s.controller(st, nil)))
}

func (s *Server) handleDeleteSession(c *echo.Context) error {
	st, ok, err := s.acquire(c)
	if !ok {
		return err
	}
	defer st.Release()
	if err := s.sessions.Delete(st.ID); err != nil {
		return writeNotFound(c, "session not found")
	}
	s.log.Info("session deleted", "session", st.ID)
	return writeNoContent(c)
}

func (s *Server) handleUpdateSettings(c *echo.Context) error {
	req, err := decodeJSON[SettingsRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Model != nil {
		if _, ok := s.Registry().Lookup(*req.Model); !ok {
			return writeBadRequest(c, "unknown model "+*req.Model)
		}
	}

	st, ok, err := s.acquire(c)
	if !ok {
		return err
	}
	defer st.Release()

	ctrl := s.controller(st, nil)
	set := ctrl.Settings()
	if req.Model != nil {
		set.ModelID = *req.Model
	}
	if req.SystemPrompt != nil {
		set.SystemPrompt = *req.SystemPrompt
	}
	if req.ContextLength != nil {
		set.MaxSteps = *req.ContextLength
	}
	if req.Temperature != nil {
		set.Temperature = *req.Temperature
	}
	ctrl.SetSettings(set)
	return writeJSON(c, http.StatusOK, sessionResponse(ctrl))
}

func (s *Server) handleSendMessage(c *echo.Context) error {
	req, err := decodeJSON[MessageRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return writeBadRequest(c, "content is required")
	}

	st, ok, err := s.acquire(c)
	if !ok {
		return err
	}
	defer st.Release()

	ctrl := s.controller(st, nil)
	ctrl.Submit(req.Content)
	return s.stream(c, ctrl)
}

// handleContinue answers 204 when there is no exchange to continue.
func (s *Server) handleContinue(c *echo.Context) error {
	st, ok, err := s.acquire(c)
	if !ok {
		return err
	}
	defer st.Release()

	ctrl := s.controller(st, nil)
	if !ctrl.Continue() {
		return writeNoContent(c)
	}
	return s.stream(c, ctrl)
}

func (s *Server) handleForget(c *echo.Context) error {
	st, ok, err := s.acquire(c)
	if !ok {
		return err
	}
	defer st.Release()

	ctrl := s.controller(st, nil)
	ctrl.Forget()
	return writeJSON(c, http.StatusOK, sessionResponse(ctrl))
}

// stream runs the staged turn of ctrl as an event stream: the refreshed
// transcript, one delta per chunk, then done or error.
func (s *Server) stream(c *echo.Context, ctrl *turn.Controller) error {
	w, err := newSSEWriter(c, ctrl)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	defer w.close()

	w.RequestRefresh()
	if err := ctrl.Run(c.Request().Context(), w); err != nil {
		w.fail(err)
		return nil
	}
	msgs := ctrl.Messages()
	w.done(msgs[len(msgs)-1])
	return nil
}
