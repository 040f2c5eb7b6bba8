package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wopr-network/wopr/internal/provider"
)

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Providers.ListProviders())
}

func (s *Server) getProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, d := range s.deps.Providers.ListProviders() {
		if d.ID == id {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "provider not found")
}

type setCredentialRequest struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// setProviderCredential persists a new credential for an already-registered
// provider id. It does not construct a new client: the concrete provider
// types (Anthropic/OpenAI/Bedrock) are wired once at daemon bootstrap with
// the key they were given then, so a running provider keeps using its old
// key; the stored credential is read only by provider.Bootstrap at startup.
func (s *Server) setProviderCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Providers.Get(id); !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "provider not registered")
		return
	}
	var req setCredentialRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if err := s.deps.Credential.Set(id, provider.Credential{APIKey: req.APIKey, BaseURL: req.BaseURL}); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

func (s *Server) providersHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.deps.Providers.CheckHealth()
	writeJSON(w, http.StatusOK, s.deps.Providers.ListProviders())
}
