package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) canvasSnapshot(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	writeJSON(w, http.StatusOK, s.deps.Canvas.Snapshot(session))
}

type canvasPushRequest struct {
	Content string `json:"content"`
}

func (s *Server) canvasPush(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	var req canvasPushRequest
	if err := readJSON(r, &req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}
	block := s.deps.Canvas.Push(session, req.Content, nowMillis())
	writeJSON(w, http.StatusCreated, block)
}

type canvasRemoveRequest struct {
	ID string `json:"id"`
}

func (s *Server) canvasRemove(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	var req canvasRemoveRequest
	if err := readJSON(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "id is required")
		return
	}
	s.deps.Canvas.Remove(session, req.ID)
	writeSuccess(w)
}

func (s *Server) canvasReset(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	s.deps.Canvas.Reset(session)
	writeSuccess(w)
}
