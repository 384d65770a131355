package storage

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/eugenenazirov/order-totals/internal/calculator"
)

var (
	// ErrInvalidRules indicates the provided pricing rules violate validation rules.
	ErrInvalidRules = errors.New("tax rate must be within [0, 1] and shipping values must be non-negative numbers")
)

// Storage provides access to the pricing rules used by the calculator and to
// the service-wide promo usage counter.
type Storage interface {
	GetRules() (calculator.Rules, error)
	SetRules(rules calculator.Rules) error
	RecordPromoUse() (int64, error)
	PromoUsage() (int64, error)
}

// MemoryStorage keeps pricing rules in-memory and guards access with a RWMutex.
// Promo usage is counted atomically so concurrent quotes never lose increments.
type MemoryStorage struct {
	mu    sync.RWMutex
	rules calculator.Rules

	promoUsed atomic.Int64
}

// NewMemoryStorage initialises storage with the default pricing rules.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		rules: calculator.DefaultRules(),
	}
}

// GetRules returns the currently configured pricing rules.
func (s *MemoryStorage) GetRules() (calculator.Rules, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rules, nil
}

// SetRules validates and stores the provided pricing rules.
func (s *MemoryStorage) SetRules(rules calculator.Rules) error {
	if err := ValidateRules(rules); err != nil {
		return err
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	return nil
}

// RecordPromoUse increments the promo usage counter and returns the new value.
func (s *MemoryStorage) RecordPromoUse() (int64, error) {
	return s.promoUsed.Add(1), nil
}

// PromoUsage returns how many quotes applied the promo code so far.
func (s *MemoryStorage) PromoUsage() (int64, error) {
	return s.promoUsed.Load(), nil
}

// ValidateRules reports ErrInvalidRules when rules cannot be used for pricing.
func ValidateRules(rules calculator.Rules) error {
	for _, v := range []float64{rules.TaxRate, rules.FreeShipThreshold, rules.ShipPerKg} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidRules
		}
	}
	if rules.TaxRate > 1 {
		return ErrInvalidRules
	}
	return nil
}
