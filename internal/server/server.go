// Package server wires storage, providers, and the notification hub into the
// Kringle HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/cache"
	"github.com/kringlelabs/kringle/internal/chat"
	"github.com/kringlelabs/kringle/internal/config"
	"github.com/kringlelabs/kringle/internal/notify"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/providers"
	"github.com/kringlelabs/kringle/internal/server/endpoints"
	"github.com/kringlelabs/kringle/internal/storage"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// Server is the main Kringle HTTP server. It owns the embedded database
// lifecycle: opened on start, closed on shutdown.
type Server struct {
	httpServer   *http.Server
	db           *storage.DB
	orchestrator *chat.Orchestrator
	registry     *providers.Registry
	hub          *notify.Hub
	configMgr    *config.Manager
	logger       *slog.Logger

	storageConfig storage.Config

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port int
	// DataPath is the directory for the embedded database
	DataPath string
	// InMemory runs storage without disk persistence. Used by tests.
	InMemory bool
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	// If config manager provided, set up providers and hot reload
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToRegistryConfig())

		// Watch for config changes
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		registry:  registry,
		hub:       notify.NewHub(cfg.Logger),
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.storageConfig = storage.Config{
		Path:       cfg.DataPath,
		InMemory:   cfg.InMemory,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
		Logger:     cfg.Logger,
	}

	return s, nil
}

// Start opens storage and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Open the embedded database
	s.logger.Info("opening storage", "path", s.storageConfig.Path, "in_memory", s.storageConfig.InMemory)
	db, err := storage.Open(s.storageConfig)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open storage: %w", err)
	}
	s.db = db

	// Assemble the service graph over the shared database
	appCfg := config.DefaultConfig()
	if s.configMgr != nil {
		appCfg = s.configMgr.Get()
	}

	conversationCache := cache.New(db, appCfg.HistoryTTL())
	profiles := profile.NewCachedStore(profile.NewBadgerStore(db), conversationCache, s.logger)
	history := chat.NewHistory(conversationCache, s.logger)
	s.orchestrator = chat.NewOrchestrator(profiles, history, s.registry, s.hub, chat.Config{
		AgentName:     appCfg.Chat.AgentName,
		StreamTimeout: appCfg.StreamTimeout(),
	}, s.logger)

	// Create services struct for context enrichment
	s.mu.Lock()
	s.services = &svcctx.Services{
		Cache:         conversationCache,
		Profiles:      profiles,
		Registry:      s.registry,
		Hub:           s.hub,
		Orchestrator:  s.orchestrator,
		History:       history,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
	}
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up storage on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and storage.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Close storage
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("storage close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Hub returns the notification hub.
func (s *Server) Hub() *notify.Hub {
	return s.hub
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc := s.currentServices(); svc != nil {
			ctx = svcctx.WithServices(ctx, svc)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) currentServices() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if storage isn't ready yet.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.currentServices() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
