package server

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRoutes mirrors spec.md §6's authoritative route table.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/inject", s.injectSession)
			r.Post("/log", s.logSession)
			r.Get("/history", s.sessionHistory)
		})
	})

	r.Route("/api/providers", func(r chi.Router) {
		r.Get("/", s.listProviders)
		r.Post("/health-check", s.providersHealthCheck)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getProvider)
			r.Post("/", s.setProviderCredential)
		})
	})

	r.Route("/api/crons", func(r chi.Router) {
		r.Get("/", s.listCrons)
		r.Post("/", s.createCron)
		r.Delete("/{name}", s.deleteCron)
	})

	r.Route("/api/middleware", func(r chi.Router) {
		r.Get("/", s.listMiddleware)
		r.Post("/", s.setMiddleware)
	})

	r.Route("/api/context", func(r chi.Router) {
		r.Get("/", s.listContextProviders)
		r.Post("/", s.setContextProvider)
	})

	r.Route("/api/capabilities", func(r chi.Router) {
		r.Get("/", s.listCapabilities)
		// Throttle(10) caps these routes at 10 requests in flight at once;
		// no per-minute rate limit is applied.
		r.With(middleware.Throttle(10)).Group(func(r chi.Router) {
			r.Post("/", s.setCapabilities)
			r.Post("/activate", s.activateCapabilities)
			r.Post("/deactivate", s.deactivateCapabilities)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", s.chatCompletions)
		r.Get("/models", s.listModels)
		r.Get("/models/{id}", s.getModel)
	})

	r.Route("/canvas/{session}", func(r chi.Router) {
		r.Get("/", s.canvasSnapshot)
		r.Post("/push", s.canvasPush)
		r.Post("/remove", s.canvasRemove)
		r.Post("/reset", s.canvasReset)
	})

	r.Get("/event", s.globalEvents)

	if s.deps.Hub != nil {
		r.Get("/ws", s.deps.Hub.ServeHTTP)
	}
}

// nowMillis is a small indirection so tests can't accidentally depend on
// wall-clock granularity in assertions that only check "some timestamp".
func nowMillis() int64 { return time.Now().UnixMilli() }
