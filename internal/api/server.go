// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/loanwell/lectern-go/internal/core"
	"github.com/loanwell/lectern-go/internal/websocket"
)

// Server holds the dependencies for our API.
type Server struct {
	app *core.App
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{app: app}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/version", s.handleGetVersion)

	r.Route("/api", func(r chi.Router) {
		// Profile and account management
		r.Post("/profiles", s.handleCreateProfile)
		r.Post("/profiles/{profileID}/accounts", s.handleCreateAccount)

		// Book Routes
		r.Get("/books", s.handleListBooks)
		r.Post("/books/borrow", s.handleBorrow)
		r.Get("/books/{bookID}", s.handleGetBook)
		r.Get("/books/{bookID}/status", s.handleGetBookStatus)
		r.Post("/books/{bookID}/revoke", s.handleRevoke)
		r.Post("/books/{bookID}/cancel", s.handleCancel)

		// Latest status of every known book
		r.Get("/status", s.handleListStatus)

		// Admin Routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/jobs/status", s.handleGetAdminJobsStatus)
			r.Post("/jobs/run", s.handleRunAdminJob)

			// DRM device management
			r.Post("/drm/activate", s.handleDRMActivate)
			r.Post("/drm/deactivate", s.handleDRMDeactivate)
		})
	})

	// WebSocket route
	r.Get("/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.app.WsHub(), w, r)
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.app.DB().Ping(); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
