package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/order-totals/internal/calculator"
	"github.com/eugenenazirov/order-totals/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler wires calculator and storage dependencies into HTTP handlers.
type Handler struct {
	calculator calculator.Calculator
	storage    storage.Storage
	metrics    *Metrics
	logger     *zap.Logger

	clock func() time.Time

	mu             sync.RWMutex
	rulesUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMetrics records quote outcomes on m.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogger sets the logger used for quote diagnostics.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(calc calculator.Calculator, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		calculator: calc,
		storage:    store,
		logger:     zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.rulesUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetRules(w http.ResponseWriter, r *http.Request) {
	_ = r
	rules, err := h.storage.GetRules()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRulesResponse(rules, h.currentRulesUpdatedAt(), ""))
}

func (h *Handler) handlePutRules(w http.ResponseWriter, r *http.Request) {
	var req rulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if req.TaxRate == nil || req.FreeShipThreshold == nil || req.ShipPerKg == nil {
		writeError(w, http.StatusBadRequest, "Invalid pricing rules", "taxRate, freeShipThreshold and shipPerKg are required")
		return
	}

	rules := calculator.Rules{
		TaxRate:           *req.TaxRate,
		FreeShipThreshold: *req.FreeShipThreshold,
		ShipPerKg:         *req.ShipPerKg,
	}
	if err := h.storage.SetRules(rules); err != nil {
		if errors.Is(err, storage.ErrInvalidRules) {
			writeError(w, http.StatusBadRequest, "Invalid pricing rules", err.Error(), "taxRate is a fraction, e.g. 0.1 for 10%")
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markRulesUpdated()
	h.logger.Info("pricing rules updated",
		zap.Float64("tax_rate", rules.TaxRate),
		zap.Float64("free_ship_threshold", rules.FreeShipThreshold),
		zap.Float64("ship_per_kg", rules.ShipPerKg),
		zap.String("request_id", requestIDFromContext(r.Context())),
	)

	stored, err := h.storage.GetRules()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRulesResponse(stored, h.currentRulesUpdatedAt(), "Pricing rules updated successfully"))
}

// handleQuote never rejects cart contents: malformed carts price to 0 and
// malformed lines are skipped, mirroring the calculator.
func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	rules, err := h.storage.GetRules()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	cart := calculator.ParseCart(req.Cart)
	cfg := calculator.ParseConfig(req.Options)

	start := time.Now()
	quote := h.calculator.Quote(cart, cfg, rules)
	elapsed := time.Since(start)

	if quote.PromoApplied {
		usage, err := h.storage.RecordPromoUse()
		if err != nil {
			writeInternalError(w, err)
			return
		}
		h.logger.Debug("promo code applied",
			zap.String("promo_code", calculator.PromoCodeSave10),
			zap.Int64("promo_used", usage),
			zap.String("discount_kind", string(quote.DiscountKind)),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
	}
	h.metrics.observeQuote(quote)

	writeJSON(w, http.StatusOK, quoteResponse{
		Quote:             quote,
		Counters:          cfg.Counters,
		CalculationTimeMs: elapsed.Milliseconds(),
	})
}

func (h *Handler) handlePromoUsage(w http.ResponseWriter, r *http.Request) {
	_ = r
	usage, err := h.storage.PromoUsage()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, promoUsageResponse{
		PromoCode: calculator.PromoCodeSave10,
		PromoUsed: usage,
	})
}

func (h *Handler) currentRulesUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rulesUpdatedAt
}

func (h *Handler) markRulesUpdated() {
	h.mu.Lock()
	h.rulesUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type rulesRequest struct {
	TaxRate           *float64 `json:"taxRate"`
	FreeShipThreshold *float64 `json:"freeShipThreshold"`
	ShipPerKg         *float64 `json:"shipPerKg"`
}

type rulesResponse struct {
	TaxRate           float64   `json:"taxRate"`
	FreeShipThreshold float64   `json:"freeShipThreshold"`
	ShipPerKg         float64   `json:"shipPerKg"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Message           string    `json:"message,omitempty"`
}

func newRulesResponse(rules calculator.Rules, updatedAt time.Time, message string) rulesResponse {
	return rulesResponse{
		TaxRate:           rules.TaxRate,
		FreeShipThreshold: rules.FreeShipThreshold,
		ShipPerKg:         rules.ShipPerKg,
		UpdatedAt:         updatedAt,
		Message:           message,
	}
}

// quoteRequest keeps cart and options untyped so that wrongly typed values
// degrade to defaults instead of failing the whole request.
type quoteRequest struct {
	Cart    any `json:"cart"`
	Options any `json:"options"`
}

// quoteResponse flattens the quote breakdown next to the echoed counters.
type quoteResponse struct {
	calculator.Quote
	Counters          *calculator.Counters `json:"counters,omitempty"`
	CalculationTimeMs int64                `json:"calculationTimeMs"`
}

type promoUsageResponse struct {
	PromoCode string `json:"promoCode"`
	PromoUsed int64  `json:"promoUsed"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
