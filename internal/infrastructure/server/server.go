package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/GriffinCanCode/terminaltab/internal/api/http"
	"github.com/GriffinCanCode/terminaltab/internal/api/middleware"
	"github.com/GriffinCanCode/terminaltab/internal/api/ws"
	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/config"
	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/logging"
	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/terminaltab/internal/shared/executor"
	"github.com/GriffinCanCode/terminaltab/internal/shared/paths"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/appearance"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/launch"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/locale"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/registry"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/session"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/shellconfig"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/state"
)

// Server wraps the HTTP server and the terminal subsystem
type Server struct {
	router   *gin.Engine
	http     *http.Server
	registry *registry.Registry
	store    state.Store
	watcher  *appearance.Watcher
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing terminal host",
		zap.String("port", cfg.Server.Port),
		zap.String("state_backend", cfg.State.Backend),
		zap.String("multiplexer", cfg.Terminal.Multiplexer),
	)

	// Metrics go to a private registry so tests can build several servers
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	if err := applyDefaultPaths(cfg); err != nil {
		logger.Sync()
		return nil, err
	}

	// Persisted session state
	store, err := state.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	checkpoint := state.NewCheckpointer(store, cfg.Terminal.CheckpointDebounce,
		logger.Component("checkpoint"), metrics)
	logger.Info("State store opened",
		zap.String("backend", cfg.State.Backend),
		zap.String("path", cfg.State.Path))

	shells, err := shellconfig.Load(cfg.Terminal.ShellConfig)
	if err != nil {
		store.Close()
		logger.Sync()
		return nil, fmt.Errorf("failed to load shell config: %w", err)
	}

	exec := executor.NewReal()
	strategy := launch.MultiplexedStrategy(cfg.Terminal.Multiplexer, cfg.Terminal.Namespace)
	breaker := resilience.New(cfg.Terminal.Multiplexer, resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Multiplexer circuit changed state",
				zap.String("binary", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	terminals := registry.New(registry.Config{
		Strategy:       strategy,
		Multiplexer:    launch.NewMultiplexer(exec, strategy).WithBreaker(breaker),
		Shell:          shells,
		Locale:         locale.NewResolver(exec, cfg.Terminal.Language, logger.Component("locale")),
		Checkpoint:     checkpoint,
		Spawner:        session.PTYSpawner{},
		Workspace:      cfg.Terminal.Workspace,
		CommandTimeout: cfg.Terminal.CommandTimeout,
		Logger:         logger.Component("registry"),
		Metrics:        metrics,
	})

	// Appearance file and watcher
	source, err := appearance.NewSource(cfg.Appearance.File)
	if err != nil {
		logger.Warn("Failed to load appearance, using defaults",
			zap.String("file", cfg.Appearance.File),
			zap.Error(err))
		source, _ = appearance.NewSource("")
	}
	var watcher *appearance.Watcher
	if cfg.Appearance.Watch && source.Path() != "" {
		watcher, err = appearance.NewWatcher(source, appearance.DefaultDebounce,
			func(appearance.Appearance) { terminals.BroadcastThemeChange() },
			logger.Component("appearance"))
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			logger.Warn("Appearance watcher disabled", zap.Error(err))
			watcher = nil
		}
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	tracer := tracing.New("terminal-host", logger.Component("trace"))
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Terminal I/O is not rate limited
	wsHandler := ws.NewHandler(terminals, logger.Component("ws"), metrics)
	router.GET("/terminals/ws", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := router.Group("/")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	httpapi.NewHandlers(terminals, source, logger.Component("http")).Register(api)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		registry: terminals,
		store:    store,
		watcher:  watcher,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &http.Server{
			Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

// applyDefaultPaths fills unset file locations from the per-user layout and
// creates its directories.
func applyDefaultPaths(cfg *config.Config) error {
	if cfg.State.Path != "" && cfg.Terminal.ShellConfig != "" && cfg.Appearance.File != "" {
		return nil
	}
	layout, err := paths.Default()
	if err != nil {
		return fmt.Errorf("resolve default paths: %w", err)
	}
	if err := layout.Ensure(); err != nil {
		return err
	}
	if cfg.State.Path == "" {
		cfg.State.Path = layout.State
	}
	if cfg.Terminal.ShellConfig == "" {
		cfg.Terminal.ShellConfig = layout.ShellConfigFile()
	}
	if cfg.Appearance.File == "" {
		cfg.Appearance.File = layout.AppearanceFile()
	}
	return nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it is shut down.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, detaches every terminal so that
// persistent sessions survive, and flushes pending state.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.tracer.Close()
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("appearance watcher: %w", err))
		}
	}
	if err := s.registry.Shutdown(ctx); err != nil {
		s.logger.Error("Terminal shutdown incomplete", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close state store: %w", err))
	}
	s.logger.Info("Server stopped", zap.Int("pid", os.Getpid()))

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}
