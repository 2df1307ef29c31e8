// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/corvida/mangrove/internal/core"
	"github.com/corvida/mangrove/internal/reconcile"
	"github.com/corvida/mangrove/internal/storage"
	"github.com/corvida/mangrove/internal/store"
	"github.com/corvida/mangrove/internal/websocket"
)

// Server holds the dependencies for our API.
type Server struct {
	app     *core.App
	store   *store.Store
	rec     *reconcile.Reconciler
	backend storage.Backend
}

// NewServer creates a new Server instance.
func NewServer(app *core.App, rec *reconcile.Reconciler, backend storage.Backend) *Server {
	return &Server{
		app:     app,
		store:   store.New(app.DB()),
		rec:     rec,
		backend: backend,
	}
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
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

	// Ingest progress feed for the admin dashboard
	r.Get("/api/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.app.WsHub(), w, r)
	})

	// Public reading surface
	r.Route("/api/series", func(r chi.Router) {
		r.Get("/", s.handleListSeries)
		r.Get("/{seriesID}", s.handleGetSeries)
		r.Get("/{seriesID}/chapters/{chapterNumber}", s.handleGetChapter)
	})

	// Admin surface
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.AdminAuthMiddleware)

		r.Post("/series", s.handleCreateSeries)
		r.Put("/series/{seriesID}", s.handleUpdateSeries)
		r.Delete("/series/{seriesID}", s.handleDeleteSeries)
		r.Post("/series/{seriesID}/status", s.handleSetSeriesStatus)
		r.Post("/series/{seriesID}/recheck", s.handleRecheckSeries)
		r.Post("/series/{seriesID}/repair", s.handleRepairChapter)

		r.Get("/jobs/status", s.handleGetAdminJobsStatus)
		r.Post("/jobs/run", s.handleRunAdminJob)
	})

	// Stored page images, when the local backend serves them itself.
	if local, ok := s.backend.(*storage.Local); ok {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(local.Root())))
		r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
			fileServer.ServeHTTP(w, r)
		})
	}

	return r
}
