package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes returns the HTTP handler with all application routes. The streaming
// endpoints sit outside the request logger, which would wrap their writer.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.Get("/healthz", HealthHandler)
	r.Get("/test", TestPageHandler)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(s.requestLogger)

		r.Post("/api/messages", s.handleSubmit)
		r.Get("/api/rooms", s.handleListRooms)
		r.Get("/api/rooms/{id}", s.handleGetRoom)
		r.Post("/api/admin/login", s.handleLogin)

		r.Route("/api/admin/rooms", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/", s.handleCreateRoom)
			r.Patch("/{id}", s.handleRenameRoom)
			r.Delete("/{id}", s.handleDeleteRoom)
		})
	})

	return r
}
