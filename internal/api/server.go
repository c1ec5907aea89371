// Package api provides the HTTP API server and handlers for TabVault.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    *store.Store
	services *Services
	bridge   *browser.Bridge
	router   *chi.Mux
	api      huma.API
	logger   *logger.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// bridge may be nil, in which case the websocket endpoint is not mounted.
func NewServer(st *store.Store, services *Services, bridge *browser.Bridge, log *logger.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		// The extension connects from its own origin; which origin that is
		// depends on the extension id, so the API stays permissive.
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("TabVault API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:    st,
		services: services,
		bridge:   bridge,
		router:   router,
		api:      humaAPI,
		logger:   log,
	}

	s.registerHealthRoutes()
	s.registerCollectionRoutes()
	s.registerSnoozeRoutes()
	if services.Search != nil {
		s.registerSearchRoutes()
	}

	// The extension bridge is a raw websocket upgrade, outside huma.
	if bridge != nil {
		router.Get("/bridge", bridge.HandleConnection)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
