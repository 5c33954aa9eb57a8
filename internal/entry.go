// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/protasker/internal/annotationservice"
	"github.com/starford/protasker/internal/api"
	"github.com/starford/protasker/internal/index"
	"github.com/starford/protasker/internal/mcpserver"
	"github.com/starford/protasker/internal/monitor"
	"github.com/starford/protasker/internal/settings"
	"github.com/starford/protasker/internal/sse"
	"github.com/starford/protasker/internal/storage"
	"github.com/starford/protasker/internal/store"
	"github.com/starford/protasker/internal/watch"
	pkgconfig "github.com/starford/protasker/pkg/config"
)

// core is the engine shared by the HTTP and MCP front ends.
type core struct {
	store    *store.Store
	settings *settings.Live
	svc      *annotationservice.Service
	db       *index.DB
}

func (c *core) Close() {
	if c.db != nil {
		c.db.Close()
	}
}

func (a *application) init() (*Config, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return a.config, nil
}

// annotationsLoader re-reads the annotations section of the config file.
func annotationsLoader(path string) func() (settings.Annotations, error) {
	if path == "" {
		return nil
	}
	return func() (settings.Annotations, error) {
		cfg := NewDefaultConfig()
		if err := pkgconfig.Load(path, cfg); err != nil {
			return settings.Annotations{}, err
		}
		return cfg.Annotations, nil
	}
}

func newCore(cfg *Config, configPath string, logger *slog.Logger) (*core, error) {
	if logger == nil {
		logger = slog.Default()
	}
	live := settings.NewLive(cfg.Annotations, annotationsLoader(configPath), logger)

	fs, err := storage.NewFS(filepath.Dir(cfg.Store.Path))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	st := store.Open(fs, filepath.Base(cfg.Store.Path),
		store.WithLogger(logger),
		store.WithRegistry(live.Registry),
	)

	c := &core{store: st, settings: live}

	var ai index.AnnotationIndex
	if cfg.Index.Enabled {
		db, err := index.Open(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		c.db = db
		ai = db
	}

	c.svc = annotationservice.NewService(st, ai, logger)
	c.svc.SyncIndex()
	return c, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	cfg, err := app.init()
	if err != nil {
		return err
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.Bool("index_enabled", cfg.Index.Enabled),
		slog.Int("custom_types", len(cfg.Annotations.CustomTypes)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := newCore(cfg, app.configPath, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c.store.OnChange(func(ch store.Change) {
		c.svc.HandleChange(ch)
		broker.PublishStoreChange(sse.StoreChange{
			Op:         string(ch.Op),
			Collection: string(ch.Collection),
			Path:       ch.Path,
			ID:         ch.ID,
		})
	})

	mon := monitor.New(c.store,
		monitor.WithInterval(cfg.Monitor.Interval),
		monitor.WithWindow(cfg.Monitor.ApproachWindow),
		monitor.WithEnabled(c.settings.NotificationsEnabled),
		monitor.WithLogger(logger),
		monitor.OnApproaching(func(a monitor.Alert) { broker.PublishDeadline(true, a) }),
		monitor.OnOverdue(func(a monitor.Alert) { broker.PublishDeadline(false, a) }),
	)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; SSE lives at /api/events behind auth.
	r.Mount("/api", api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.App.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		ExposedHeaders: []string{"X-Deleted"},
	}).Handler(r)

	httpServer := &http.Server{
		Addr:        cfg.App.HTTP.Address(),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Deadline monitor.
	g.Go(func() error {
		return mon.Run(gCtx)
	})

	// Reload the store document when it is edited outside the process.
	if cfg.Store.Watch {
		docPath, err := c.store.Location()
		if err != nil {
			return fmt.Errorf("locate store document: %w", err)
		}
		g.Go(func() error {
			err := watch.File(gCtx, docPath, watch.DefaultDebounce, logger, func() {
				if _, err := c.store.Reload(); err != nil {
					logger.Warn("store reload failed, keeping current tree", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				logger.Warn("store watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Reload custom types and the notification switch from the config file.
	if app.configPath != "" {
		g.Go(func() error {
			err := watch.File(gCtx, app.configPath, watch.DefaultDebounce, logger, func() {
				if err := c.settings.Reload(); err == nil {
					c.svc.HandleChange(store.Change{Op: store.OpReload})
				}
			})
			if err != nil {
				logger.Warn("config watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so background loops stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	cfg, err := app.init()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	c, err := newCore(cfg, app.configPath, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	c.store.OnChange(c.svc.HandleChange)

	srv := mcpserver.New(c.svc)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
