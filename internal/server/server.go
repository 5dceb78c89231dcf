// Package server wires every component into the running daemon: persistence,
// browser transport, coordinator, router, and the gin HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sessionvault/sessionvault/internal/api/middleware"
	"github.com/sessionvault/sessionvault/internal/cdp"
	"github.com/sessionvault/sessionvault/internal/cookies"
	"github.com/sessionvault/sessionvault/internal/grants"
	apihttp "github.com/sessionvault/sessionvault/internal/http"
	"github.com/sessionvault/sessionvault/internal/infrastructure/config"
	"github.com/sessionvault/sessionvault/internal/infrastructure/monitoring"
	"github.com/sessionvault/sessionvault/internal/kv"
	"github.com/sessionvault/sessionvault/internal/logging"
	"github.com/sessionvault/sessionvault/internal/pagestore"
	"github.com/sessionvault/sessionvault/internal/router"
	"github.com/sessionvault/sessionvault/internal/session"
	"github.com/sessionvault/sessionvault/internal/shared/types"
	"github.com/sessionvault/sessionvault/internal/store"
)

// Version is the daemon version reported by the health endpoints.
const Version = "1.0.0"

// Server wraps the HTTP server and its dependencies.
type Server struct {
	engine  *gin.Engine
	kvStore kv.Store
	client  *cdp.Client
	logger  *logging.Logger
	config  *config.Config
}

// New builds a fully wired server from configuration. A browser that is not
// reachable at boot is tolerated: store operations keep working and
// live-state operations fail until the daemon is restarted with a browser.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}
	metrics := monitoring.NewMetrics()

	// Persistence.
	var kvStore kv.Store
	if cfg.Store.Path == "" {
		kvStore = kv.NewMemory()
		logger.Warn("no store path configured, sessions will not survive restarts")
	} else {
		sqlite, err := kv.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		kvStore = sqlite
	}

	manager, err := store.Open(kvStore, logger)
	if err != nil {
		kvStore.Close()
		return nil, fmt.Errorf("failed to load session store: %w", err)
	}
	metrics.SetSessionsStored(len(manager.Sessions()))

	grantsSrc := grants.NewKVSource(kvStore)
	gate := grants.NewChecker(grantsSrc)

	// Browser transport, optional at boot.
	var (
		client  *cdp.Client
		browser *cdp.Browser
	)
	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err = cdp.Connect(dialCtx, cfg.Browser.DevToolsURL, metrics, logger)
	cancel()
	if err != nil {
		logger.Warn("browser not reachable, live-state operations disabled",
			zap.String("devtools_url", cfg.Browser.DevToolsURL), zap.Error(err))
	} else {
		browser = cdp.NewBrowser(client, logger)
		logger.Info("attached to browser", zap.String("devtools_url", cfg.Browser.DevToolsURL))
	}

	coordinator := buildCoordinator(browser, logger)
	dispatcher := router.New(gate, coordinator, manager, metrics, logger)

	var tabs apihttp.Tabs
	if browser != nil {
		tabs = browser
	}
	handlers := apihttp.NewHandlers(dispatcher, manager, coordinator, tabs, grantsSrc, metrics, Version)

	// HTTP engine.
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		rlCfg := middleware.DefaultRateLimitConfig()
		if cfg.RateLimit.RequestsPerSecond > 0 {
			rlCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		}
		if cfg.RateLimit.Burst > 0 {
			rlCfg.Burst = cfg.RateLimit.Burst
		}
		logger.Info("rate limiting enabled",
			zap.Int("rps", rlCfg.RequestsPerSecond),
			zap.Int("burst", rlCfg.Burst),
		)
		engine.Use(middleware.RateLimit(rlCfg))
	}

	registerRoutes(engine, handlers)

	return &Server{
		engine:  engine,
		kvStore: kvStore,
		client:  client,
		logger:  logger,
		config:  cfg,
	}, nil
}

func registerRoutes(engine *gin.Engine, handlers *apihttp.Handlers) {
	engine.GET("/", handlers.Root)
	engine.GET("/health", handlers.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	{
		v1.POST("/message", handlers.Message)

		v1.GET("/sessions", handlers.ListSessions)
		v1.POST("/sessions", handlers.SaveSession)
		v1.PUT("/sessions/:id", handlers.RenameSession)
		v1.DELETE("/sessions/:id", handlers.DeleteSession)
		v1.POST("/sessions/:id/replace", handlers.ReplaceSession)
		v1.POST("/sessions/:id/switch", handlers.SwitchSession)
		v1.POST("/sessions/detach", handlers.DetachSession)
		v1.POST("/sessions/clear", handlers.ClearSessions)

		v1.GET("/export", handlers.Export)
		v1.POST("/import", handlers.Import)

		v1.GET("/viewmode", handlers.GetViewMode)
		v1.PUT("/viewmode", handlers.SetViewMode)

		v1.GET("/grants", handlers.GetGrants)
		v1.PUT("/grants", handlers.PutGrants)

		v1.GET("/tabs", handlers.ListTabs)
	}
}

// buildCoordinator assembles the live-state coordinator. Without a browser
// it runs on stand-ins that fail every call, which the handlers absorb or
// surface per their own policies.
func buildCoordinator(browser *cdp.Browser, logger *logging.Logger) *session.Coordinator {
	if browser == nil {
		na := notAttached{}
		return session.NewCoordinator(
			cookies.NewHandler(na, logger),
			pagestore.NewHandler(na, logger),
			na,
			logger,
		)
	}
	return session.NewCoordinator(
		cookies.NewHandler(browser, logger),
		pagestore.NewHandler(browser, logger),
		browser,
		logger,
	)
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the browser connection and the persistent store.
func (s *Server) Close() error {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Error("failed to close browser connection", zap.Error(err))
		}
	}
	if err := s.kvStore.Close(); err != nil {
		s.logger.Error("failed to close store", zap.Error(err))
		return err
	}
	s.logger.Sync()
	return nil
}

// notAttached stands in for the browser when no DevTools endpoint was
// reachable at boot.
type notAttached struct{}

var errNotAttached = errors.New("browser not attached")

func (notAttached) StoreIDs(context.Context) ([]string, error) { return nil, errNotAttached }

func (notAttached) GetAll(context.Context, string) ([]types.Cookie, error) {
	return nil, errNotAttached
}

func (notAttached) Set(context.Context, cookies.SetRequest) error       { return errNotAttached }
func (notAttached) Remove(context.Context, cookies.RemoveRequest) error { return errNotAttached }

func (notAttached) Eval(context.Context, string, string) (json.RawMessage, error) {
	return nil, errNotAttached
}

func (notAttached) Reload(context.Context, string) error { return errNotAttached }

func (notAttached) FindForDomain(context.Context, string) (string, error) {
	return "", errNotAttached
}
