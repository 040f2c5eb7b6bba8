package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wopr-network/wopr/internal/executor"
	"github.com/wopr-network/wopr/internal/queue"
	"github.com/wopr-network/wopr/internal/security"
	"github.com/wopr-network/wopr/pkg/types"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Store.ListSessions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createSessionRequest struct {
	Name     string               `json:"name"`
	Context  string                `json:"context,omitempty"`
	Provider *types.ProviderConfig `json:"provider,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if !sessionNameValid(req.Name) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid session name")
		return
	}

	if _, existed, err := s.deps.Store.GetSessionID(req.Name); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	} else if existed {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "session already exists")
		return
	}

	if err := s.deps.Store.SaveSessionID(req.Name, ""); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if req.Context != "" {
		if err := s.deps.Store.SetContext(req.Name, req.Context); err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
	}
	if req.Provider != nil {
		if err := s.deps.Store.SetProvider(req.Name, req.Provider); err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func sessionNameValid(name string) bool {
	return name != "" && len(name) < 256 && sessionNameSafe(name)
}

func sessionNameSafe(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	convID, ok, err := s.deps.Store.GetSessionID(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	ctxText, _ := s.deps.Store.GetContext(name)
	providerCfg, _ := s.deps.Store.GetProvider(name)
	writeJSON(w, http.StatusOK, types.Session{
		Name: name, ConversationID: convID, Context: ctxText, Provider: providerCfg,
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.deps.Store.DeleteSession(name, "deleted via API"); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

type injectRequest struct {
	Message  string   `json:"message"`
	From     string   `json:"from,omitempty"`
	Channel  string   `json:"channel,omitempty"`
	SenderID string   `json:"senderId,omitempty"`
	Images   []types.ImageRef `json:"images,omitempty"`
}

func (s *Server) injectSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req injectRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "message is required")
		return
	}
	from := req.From
	if from == "" {
		from = "api"
	}

	result, err := s.deps.Queue.Inject(r.Context(), name, req.Message, types.InjectOptions{
		From: from, Channel: req.Channel, SenderID: req.SenderID, Images: req.Images,
		Source: types.InjectionSource{Type: types.SourceAPI},
	})
	if err != nil {
		writeInjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": result.Response, "sessionId": result.SessionID})
}

func writeInjectError(w http.ResponseWriter, err error) {
	switch {
	case executor.IsAccessDeniedError(err), security.IsRejectedError(err):
		writeError(w, http.StatusForbidden, ErrCodePermissionDenied, err.Error())
	case errors.Is(err, queue.ErrCancelled):
		writeError(w, http.StatusConflict, ErrCodeInvalidRequest, "injection cancelled")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
	}
}

type logRequest struct {
	Content  string `json:"content"`
	Channel  string `json:"channel,omitempty"`
	SenderID string `json:"senderId,omitempty"`
}

func (s *Server) logSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req logRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}
	if err := s.deps.Log.LogMessage(name, req.Content, types.LogOptions{SenderID: req.SenderID, Channel: req.Channel}); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.deps.Log.Read(name, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
