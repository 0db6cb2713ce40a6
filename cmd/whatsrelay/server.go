package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"whatsrelay/internal/database"
	"whatsrelay/internal/middleware"
	"whatsrelay/internal/models"
	"whatsrelay/internal/realtime"
	"whatsrelay/internal/service"
	"whatsrelay/internal/tracing"
)

type serverDeps struct {
	cfg           *models.Config
	logger        *logrus.Logger
	verbose       bool
	store         database.Store
	hub           *realtime.Hub
	dispatcher    *service.Dispatcher
	ingestion     *service.IngestionService
	conversations *service.ConversationService
	outbound      *service.OutboundService
}

type Server struct {
	serverDeps
	router  *mux.Router
	handler http.Handler
	server  *http.Server
}

func NewServer(deps serverDeps) *Server {
	s := &Server{
		serverDeps: deps,
		router:     mux.NewRouter(),
	}

	s.setupRoutes()
	s.handler = cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", tracing.RequestIDHeader},
		ExposedHeaders:   []string{tracing.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(s.router)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))
	if s.verbose {
		s.router.Use(middleware.DetailedLogging(s.logger, middleware.DefaultDetailedLoggingConfig()))
	}

	// Provider callbacks are not rate limited; the provider retries on 429.
	webhook := middleware.WebhookObservability(s.logger)
	s.router.Handle("/api/webhook", webhook(s.handleWebhookVerify())).Methods(http.MethodGet)
	s.router.Handle("/api/webhook", webhook(s.handleWebhook())).Methods(http.MethodPost)

	var limiter *middleware.RateLimiter
	if s.cfg.Server.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(s.cfg.Server.RateLimitPerMinute, time.Minute)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RateLimit(limiter, s.logger))
	api.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleListConversations()).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{conversationId}/read", s.handleMarkRead()).Methods(http.MethodPatch)
	api.HandleFunc("/messages", s.handleSendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{conversationId}", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}/status", s.handleUpdateStatus()).Methods(http.MethodPatch)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.Handle("/ws", realtime.NewHandler(s.hub, s.outbound, s.cfg.Realtime, s.cfg.Server.AllowedOrigins, s.logger))
}

// ServeHTTP exposes the full handler chain, CORS included, for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
