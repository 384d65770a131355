package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eugenenazirov/order-totals/internal/api"
	"github.com/eugenenazirov/order-totals/internal/calculator"
	"github.com/eugenenazirov/order-totals/internal/config"
	"github.com/eugenenazirov/order-totals/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage    storage.Storage
	calculator calculator.Calculator
	handler    *api.Handler
	router     http.Handler
	registry   *prometheus.Registry
	logger     *zap.Logger
	server     *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if err := store.SetRules(cfg.Pricing); err != nil {
		return nil, fmt.Errorf("failed to apply initial pricing rules: %w", err)
	}

	calc := calculator.New()

	handlerOpts := []api.HandlerOption{api.WithLogger(logger)}
	routerOpts := []api.RouterOption{
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithTrustedProxy(cfg.TrustForwardedFor),
	}

	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		metrics, err := api.NewMetrics(cfg.MetricsNamespace, registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		handlerOpts = append(handlerOpts, api.WithMetrics(metrics))
		routerOpts = append(routerOpts, api.WithRequestMetrics(metrics))
	}

	handler := api.NewHandler(calc, store, handlerOpts...)
	apiRouter := api.NewRouter(handler, logger, routerOpts...)

	var metricsHandler http.Handler
	if registry != nil {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}

	return &App{
		storage:    store,
		calculator: calc,
		handler:    handler,
		router:     apiRouter,
		registry:   registry,
		logger:     logger,
		server:     NewServer(cfg, BuildRootHandler(apiRouter, metricsHandler)),
	}, nil
}

// BuildRootHandler constructs the root HTTP handler that routes API requests
// and, when metricsHandler is non-nil, exposes it on /metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
