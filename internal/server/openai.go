package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/internal/logging"
	"github.com/wopr-network/wopr/internal/provider"
	"github.com/wopr-network/wopr/pkg/types"
)

// chatMessage is one OpenAI-shaped chat message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	Delta        *chatMessage `json:"delta,omitempty"`
	FinishReason *string     `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                  `json:"id"`
	Object  string                  `json:"object"`
	Created int64                   `json:"created"`
	Model   string                  `json:"model"`
	Choices []chatCompletionChoice  `json:"choices"`
}

// chatCompletions is the `/v1/chat/completions` OpenAI-compat shim: it
// spins up an ephemeral session per call, seeds its context from any
// "system" messages, resolves a provider from the requested model (an
// exact provider id, a "provider/model" pair, or a fallback to the first
// available provider with the model string passed through unchanged), and
// either streams `chat.completion.chunk` SSE frames or returns one
// synchronous completion. The ephemeral session is always deleted before
// the handler returns, success or failure alike.
func (s *Server) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "model and messages are required")
		return
	}

	session := "openai-" + strings.ToLower(ulid.Make().String())
	defer s.deps.Store.DeleteSession(session, "openai-compat ephemeral session")

	var system strings.Builder
	var lastUser string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		case "user":
			lastUser = m.Content
		}
	}
	if err := s.deps.Store.SaveSessionID(session, ""); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if system.Len() > 0 {
		if err := s.deps.Store.SetContext(session, system.String()); err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
	}
	if err := s.deps.Store.SetProvider(session, resolveRequestedProvider(s, req.Model)); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	if req.Stream {
		s.streamChatCompletion(w, r, session, lastUser, req.Model)
		return
	}
	s.syncChatCompletion(w, r, session, lastUser, req.Model)
}

// resolveRequestedProvider maps the OpenAI "model" field onto a
// ProviderConfig: an exact registered provider id, a "provider/model"
// pair, or — if neither matches — the first available provider with the
// whole string passed through as the model override.
func resolveRequestedProvider(s *Server, model string) *types.ProviderConfig {
	if _, ok := s.deps.Providers.Get(model); ok {
		return &types.ProviderConfig{Name: model}
	}
	if providerID, modelID := provider.ParseModelString(model); providerID != "" {
		if _, ok := s.deps.Providers.Get(providerID); ok {
			return &types.ProviderConfig{Name: providerID, Model: modelID}
		}
	}
	if id, ok := s.deps.Providers.FirstAvailable(); ok {
		return &types.ProviderConfig{Name: id, Model: model}
	}
	return &types.ProviderConfig{Model: model}
}

func (s *Server) syncChatCompletion(w http.ResponseWriter, r *http.Request, session, message, model string) {
	result, err := s.deps.Queue.Inject(r.Context(), session, message, types.InjectOptions{
		From:   "openai-compat",
		Source: types.InjectionSource{Type: types.SourceAPI},
	})
	if err != nil {
		writeInjectError(w, err)
		return
	}
	finish := "stop"
	writeJSON(w, http.StatusOK, chatCompletionResponse{
		ID: "chatcmpl-" + ulid.Make().String(), Object: "chat.completion",
		Created: time.Now().Unix(), Model: model,
		Choices: []chatCompletionChoice{{
			Index: 0, Message: &chatMessage{Role: "assistant", Content: result.Response}, FinishReason: &finish,
		}},
	})
}

func (s *Server) streamChatCompletion(w http.ResponseWriter, r *http.Request, session, message, model string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "streaming not supported")
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id := "chatcmpl-" + ulid.Make().String()
	done := make(chan struct{})
	unsub := event.SubscribeAll(func(e event.Event) {
		if e.Type != event.SessionResponseChunk {
			return
		}
		chunk, ok := e.Data.(event.SessionResponseChunkData)
		if !ok || chunk.Session != session {
			return
		}
		switch chunk.Kind {
		case event.StreamDelta:
			writeChatChunk(w, flusher, id, model, chunk.Text, nil)
		case event.StreamComplete, event.StreamError:
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})
	defer unsub()

	result, err := s.deps.Queue.Inject(r.Context(), session, message, types.InjectOptions{
		From:   "openai-compat",
		Source: types.InjectionSource{Type: types.SourceAPI},
	})
	if err != nil {
		logging.Warn().Err(err).Str("session", session).Msg("server: openai-compat streaming injection failed")
	}
	_ = result

	finish := "stop"
	writeChatChunk(w, flusher, id, model, "", &finish)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeChatChunk(w http.ResponseWriter, flusher http.Flusher, id, model, delta string, finishReason *string) {
	chunk := chatCompletionResponse{
		ID: id, Object: "chat.completion.chunk", Created: time.Now().Unix(), Model: model,
		Choices: []chatCompletionChoice{{Index: 0, Delta: &chatMessage{Content: delta}, FinishReason: finishReason}},
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	var out []map[string]any
	for _, d := range s.deps.Providers.ListProviders() {
		for _, m := range d.SupportedModels {
			out = append(out, map[string]any{"id": m, "object": "model", "owned_by": d.ID})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": out})
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, d := range s.deps.Providers.ListProviders() {
		for _, m := range d.SupportedModels {
			if m == id {
				writeJSON(w, http.StatusOK, map[string]any{"id": m, "object": "model", "owned_by": d.ID})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "model not found")
}
