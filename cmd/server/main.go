package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/order-totals/internal/application"
	"github.com/eugenenazirov/order-totals/internal/config"
	"github.com/eugenenazirov/order-totals/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("order-totals", "Order Totals - prices shopping carts with tax, discounts, and shipping")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	var taxRateSet, freeShipThresholdSet, shipPerKgSet bool
	taxRate := kingpinApp.Flag("tax-rate", "Base tax rate as a fraction, e.g. 0.1").IsSetByUser(&taxRateSet).Float64()
	freeShipThreshold := kingpinApp.Flag("free-ship-threshold", "Tax-inclusive amount at which shipping is waived").IsSetByUser(&freeShipThresholdSet).Float64()
	shipPerKg := kingpinApp.Flag("ship-per-kg", "Shipping cost per started kilogram").IsSetByUser(&shipPerKgSet).Float64()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	var trustForwardedForSet bool
	trustForwardedFor := kingpinApp.Flag("trust-forwarded-for", "Key rate limits by X-Forwarded-For (only behind a proxy that sets it)").IsSetByUser(&trustForwardedForSet).Bool()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if taxRateSet {
		overrides.TaxRate = taxRate
	}

	if freeShipThresholdSet {
		overrides.FreeShipThreshold = freeShipThreshold
	}

	if shipPerKgSet {
		overrides.ShipPerKg = shipPerKg
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	if trustForwardedForSet {
		overrides.TrustForwardedFor = trustForwardedFor
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	logger.Info("pricing rules loaded",
		zap.Float64("tax_rate", cfg.Pricing.TaxRate),
		zap.Float64("free_ship_threshold", cfg.Pricing.FreeShipThreshold),
		zap.Float64("ship_per_kg", cfg.Pricing.ShipPerKg),
	)

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
