package server

import (
	"net/http"

	"github.com/wopr-network/wopr/pkg/types"
)

// listCapabilities returns the per-session capability-grant overrides
// currently configured (the "bundles" spec.md §6 refers to: a named
// session's additional granted capabilities on top of its trust level's
// base set).
func (s *Server) listCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Security.Config().Sessions)
}

type capabilitiesRequest struct {
	Session      string   `json:"session"`
	Capabilities []string `json:"capabilities"`
}

// setCapabilities wholesale-replaces a session's capability override.
func (s *Server) setCapabilities(w http.ResponseWriter, r *http.Request) {
	var req capabilitiesRequest
	if err := readJSON(r, &req); err != nil || req.Session == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "session is required")
		return
	}
	cfg := s.deps.Security.Config()
	if cfg.Sessions == nil {
		cfg.Sessions = map[string]types.SessionOverride{}
	}
	ov := cfg.Sessions[req.Session]
	ov.Capabilities = req.Capabilities
	cfg.Sessions[req.Session] = ov
	if err := s.deps.Security.Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

func (s *Server) activateCapabilities(w http.ResponseWriter, r *http.Request) {
	s.adjustCapabilities(w, r, true)
}

func (s *Server) deactivateCapabilities(w http.ResponseWriter, r *http.Request) {
	s.adjustCapabilities(w, r, false)
}

// adjustCapabilities adds (activate) or removes (deactivate) the requested
// capabilities from a session's override, leaving the rest untouched.
func (s *Server) adjustCapabilities(w http.ResponseWriter, r *http.Request, activate bool) {
	var req capabilitiesRequest
	if err := readJSON(r, &req); err != nil || req.Session == "" || len(req.Capabilities) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "session and capabilities are required")
		return
	}

	cfg := s.deps.Security.Config()
	if cfg.Sessions == nil {
		cfg.Sessions = map[string]types.SessionOverride{}
	}
	ov := cfg.Sessions[req.Session]

	if activate {
		ov.Capabilities = unionStrings(ov.Capabilities, req.Capabilities)
	} else {
		ov.Capabilities = subtractStrings(ov.Capabilities, req.Capabilities)
	}
	cfg.Sessions[req.Session] = ov

	if err := s.deps.Security.Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

func unionStrings(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, v := range append(append([]string{}, base...), add...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func subtractStrings(base, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, v := range remove {
		drop[v] = struct{}{}
	}
	out := make([]string, 0, len(base))
	for _, v := range base {
		if _, ok := drop[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
