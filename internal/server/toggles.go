package server

import "net/http"

func (s *Server) listMiddleware(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Middleware.List())
}

type toggleRequest struct {
	Name     string `json:"name"`
	Enabled  *bool  `json:"enabled,omitempty"`
	Priority *int   `json:"priority,omitempty"`
}

func (s *Server) setMiddleware(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name is required")
		return
	}
	if req.Enabled != nil {
		s.deps.Middleware.SetEnabled(req.Name, *req.Enabled)
	}
	if req.Priority != nil {
		s.deps.Middleware.SetPriority(req.Name, *req.Priority)
	}
	writeSuccess(w)
}

func (s *Server) listContextProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Context.List())
}

func (s *Server) setContextProvider(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name is required")
		return
	}
	if req.Enabled != nil {
		s.deps.Context.SetEnabled(req.Name, *req.Enabled)
	}
	if req.Priority != nil {
		s.deps.Context.SetPriority(req.Name, *req.Priority)
	}
	writeSuccess(w)
}
