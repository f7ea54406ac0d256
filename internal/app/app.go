// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/oprisk/internal/config"
	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/identity"
	"github.com/bissquit/oprisk/internal/incidents"
	incidentspostgres "github.com/bissquit/oprisk/internal/incidents/postgres"
	"github.com/bissquit/oprisk/internal/notifications"
	"github.com/bissquit/oprisk/internal/notifications/email"
	"github.com/bissquit/oprisk/internal/notifications/mattermost"
	"github.com/bissquit/oprisk/internal/pkg/ctxlog"
	"github.com/bissquit/oprisk/internal/pkg/httputil"
	"github.com/bissquit/oprisk/internal/pkg/metrics"
	"github.com/bissquit/oprisk/internal/pkg/postgres"
	"github.com/bissquit/oprisk/internal/vendors"
	"github.com/bissquit/oprisk/internal/vendors/feedhttp"
	vendorspostgres "github.com/bissquit/oprisk/internal/vendors/postgres"
	"github.com/bissquit/oprisk/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config             *config.Config
	logger             *slog.Logger
	clock              clockwork.Clock
	db                 *pgxpool.Pool
	server             *http.Server
	metricsServer      *http.Server
	backgroundCancel   context.CancelFunc
	notificationWorker *notifications.Worker
	sweeper            *incidents.Sweeper
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.MigrationsPath != "" {
		if err := postgres.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	clock := clockwork.NewRealClock()

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		AppName:         "oprisk",
		Clock:           clock,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())

	app := &App{
		config:           cfg,
		logger:           logger,
		clock:            clock,
		db:               db,
		backgroundCancel: backgroundCancel,
	}

	metrics.BuildInfo.WithLabelValues(version.Version, version.GitCommit).Set(1)
	go app.collectDBMetrics(backgroundCtx)

	router, err := app.setupRouter(backgroundCtx)
	if err != nil {
		backgroundCancel()
		app.stopBackground()
		db.Close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Producers stop first: the sweeper, then the API. The worker drains
	// what they queued, and only then is the background context cancelled.
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}
	a.backgroundCancel()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) stopBackground() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPool(a.db.Stat())

	ticker := a.clock.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			metrics.RecordDBPool(a.db.Stat())
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Sweeper returns the SLA sweeper. Returns nil if sweeping is disabled.
func (a *App) Sweeper() *incidents.Sweeper {
	return a.sweeper
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger, "/healthz", "/readyz"))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	dispatcher, err := a.setupNotifications(ctx)
	if err != nil {
		return nil, err
	}

	policy := incidents.SLAPolicy{
		DefaultMaxResponseHours:   a.config.SLA.DefaultMaxResponseHours,
		DefaultMaxResolutionHours: a.config.SLA.DefaultMaxResolutionHours,
	}

	incidentsRepo := incidentspostgres.NewRepository(a.db)
	incidentsService := incidents.NewService(incidentsRepo, dispatcher, a.clock, policy)
	escalator := incidents.NewSerializedEscalator(incidentsService)
	incidentsHandler := incidents.NewHandler(incidentsService, escalator)

	if a.config.SLA.SweepEnabled {
		a.sweeper = incidents.NewSweeper(incidents.SweeperConfig{
			Interval: a.config.SLA.SweepInterval,
			MaxLevel: a.config.SLA.MaxAutoLevel,
		}, incidentsRepo, policy, escalator, a.clock)
		a.sweeper.Start(ctx)
	}

	var feeds vendors.FeedProvider
	if a.config.Vendors.Feed.URL != "" {
		provider, err := feedhttp.NewProvider(feedhttp.Config{
			BaseURL:   a.config.Vendors.Feed.URL,
			Timeout:   a.config.Vendors.Feed.Timeout,
			RateLimit: a.config.Vendors.Feed.RateLimit,
			Burst:     a.config.Vendors.Feed.Burst,
		})
		if err != nil {
			return nil, fmt.Errorf("create feed provider: %w", err)
		}
		feeds = provider
	} else {
		slog.Warn("vendor feed is not configured: scores use profile data only")
	}

	vendorsService := vendors.NewService(
		vendorspostgres.NewRepository(a.db),
		feeds,
		vendors.NewDefaultScorer(a.clock),
		a.config.Vendors.BatchWorkers,
	)
	vendorsHandler := vendors.NewHandler(vendorsService)

	tokens := identity.NewJWTValidator(a.config.JWT.SecretKey, a.config.JWT.Issuer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(tokens))

		incidentsHandler.RegisterRoutes(r)
		vendorsHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireRole(domain.RoleOperator))
			incidentsHandler.RegisterOperatorRoutes(r)
		})
	})

	return r, nil
}

// setupNotifications starts the delivery worker and returns the dispatcher escalations
// are published to. It returns nil when notifications are disabled.
func (a *App) setupNotifications(ctx context.Context) (incidents.NotificationDispatcher, error) {
	cfg := a.config.Notifications

	slog.Info("notifications configured",
		"enabled", cfg.Enabled,
		"email_enabled", cfg.Email.Enabled,
		"routes", len(cfg.Routes),
	)

	if !cfg.Enabled {
		return nil, nil
	}

	emailSender, err := email.NewSender(email.Config{
		Enabled:      cfg.Email.Enabled,
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUser:     cfg.Email.SMTPUser,
		SMTPPassword: cfg.Email.SMTPPassword,
		FromAddress:  cfg.Email.FromAddress,
		Clock:        a.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	if !cfg.Email.Enabled {
		slog.Warn("email sender is disabled: email routes will not deliver")
	}

	// Mattermost is always available (webhook URL is the route target)
	mattermostSender := mattermost.NewSender(mattermost.Config{
		Username: cfg.Mattermost.Username,
		Channel:  cfg.Mattermost.Channel,
	})

	dispatcher := notifications.NewDispatcher(cfg.QueueSize, emailSender, mattermostSender)

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	routes := make([]notifications.Route, 0, len(cfg.Routes))
	for _, route := range cfg.Routes {
		routes = append(routes, notifications.Route{
			MinLevel: route.MinLevel,
			Channel:  domain.ChannelType(route.Channel),
			Target:   route.Target,
		})
	}
	if len(routes) == 0 {
		slog.Warn("no notification routes configured: escalations will not be delivered")
	}

	a.notificationWorker = notifications.NewWorker(notifications.WorkerConfig{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		NumWorkers:        cfg.Worker.NumWorkers,
		BaseURL:           cfg.BaseURL,
	}, dispatcher, renderer, routes, a.clock)
	a.notificationWorker.Start(ctx)

	return dispatcher, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
