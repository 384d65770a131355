package application

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/order-totals/internal/calculator"
	"github.com/eugenenazirov/order-totals/internal/config"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	cfg.Pricing = calculator.Rules{TaxRate: 0.2, FreeShipThreshold: 75, ShipPerKg: 3}
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	rules, err := app.storage.GetRules()
	if err != nil {
		t.Fatalf("GetRules returned error: %v", err)
	}
	if rules != cfg.Pricing {
		t.Fatalf("expected pricing rules %+v, got %+v", cfg.Pricing, rules)
	}
	if app.server == nil || app.router == nil || app.handler == nil || app.registry == nil {
		t.Fatalf("expected server, router, handler, and registry to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewServesMetricsAfterQuote(t *testing.T) {
	app, err := New(baseTestConfig(":0"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	handler := app.Server().Handler

	quote := httptest.NewRequest(http.MethodPost, "/api/quote", strings.NewReader(`{"cart":[{"price":10,"qty":1}],"options":{"promoCode":"SAVE10"}}`))
	handler.ServeHTTP(httptest.NewRecorder(), quote)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "apptest_promo_applications_total 1") {
		t.Fatalf("expected promo counter in metrics output:\n%s", body)
	}
}

func TestNewWithoutMetrics(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.MetricsEnabled = false

	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if app.registry != nil {
		t.Fatalf("expected no registry when metrics are disabled")
	}

	rec := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for /metrics when disabled, got %d", rec.Code)
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestNewReturnsErrorForInvalidPricing(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.Pricing.ShipPerKg = -1

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for invalid pricing rules")
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                 port,
		Pricing:              calculator.DefaultRules(),
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		LogLevel:             "info",
		RateLimitRPS:         0,
		RateLimitBurst:       0,
		MetricsEnabled:       true,
		MetricsNamespace:     "apptest",
	}
}
