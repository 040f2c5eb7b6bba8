package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wopr-network/wopr/internal/scheduler"
)

func (s *Server) listCrons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Scheduler.List())
}

type createCronRequest struct {
	Name    string `json:"name"`
	Session string `json:"session"`
	Message string `json:"message"`
	Cron    string `json:"cron,omitempty"`
	At      int64  `json:"at,omitempty"`
	Once    bool   `json:"once,omitempty"`
}

func (s *Server) createCron(w http.ResponseWriter, r *http.Request) {
	var req createCronRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if req.Name == "" || req.Session == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name, session, and message are required")
		return
	}

	var err error
	if req.Cron != "" {
		created, cErr := s.deps.Scheduler.AddCron(req.Name, req.Session, req.Message, req.Cron, req.Once)
		err = cErr
		if err == nil {
			writeJSON(w, http.StatusCreated, created)
			return
		}
	} else if req.At != 0 {
		created, cErr := s.deps.Scheduler.AddOneShot(req.Name, req.Session, req.Message, req.At)
		err = cErr
		if err == nil {
			writeJSON(w, http.StatusCreated, created)
			return
		}
	} else {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "either cron or at must be set")
		return
	}

	if errors.Is(err, scheduler.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, ErrCodeInvalidRequest, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
}

func (s *Server) deleteCron(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.deps.Scheduler.Remove(name); err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}
