package storage

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/eugenenazirov/order-totals/internal/calculator"
)

func TestNewMemoryStorageReturnsDefaultRules(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()

	got, err := store.GetRules()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := calculator.DefaultRules(); got != want {
		t.Fatalf("expected default rules %+v, got %+v", want, got)
	}
}

func TestSetRulesUpdatesState(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	want := calculator.Rules{TaxRate: 0.2, FreeShipThreshold: 50, ShipPerKg: 1.5}
	if err := store.SetRules(want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetRules()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSetRulesAcceptsZeroValues(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if err := store.SetRules(calculator.Rules{}); err != nil {
		t.Fatalf("expected zero rules to be valid, got %v", err)
	}
}

func TestSetRulesRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	testCases := []calculator.Rules{
		{TaxRate: -0.1, FreeShipThreshold: 100, ShipPerKg: 2.5},
		{TaxRate: 1.5, FreeShipThreshold: 100, ShipPerKg: 2.5},
		{TaxRate: 0.1, FreeShipThreshold: -1, ShipPerKg: 2.5},
		{TaxRate: 0.1, FreeShipThreshold: 100, ShipPerKg: -2.5},
		{TaxRate: math.NaN(), FreeShipThreshold: 100, ShipPerKg: 2.5},
		{TaxRate: 0.1, FreeShipThreshold: math.Inf(1), ShipPerKg: 2.5},
	}

	for idx, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			store := NewMemoryStorage()
			if err := store.SetRules(tc); !errors.Is(err, ErrInvalidRules) {
				t.Fatalf("expected ErrInvalidRules for %+v, got %v", tc, err)
			}
			if got, _ := store.GetRules(); got != calculator.DefaultRules() {
				t.Fatalf("expected rules to stay unchanged, got %+v", got)
			}
		})
	}
}

func TestRecordPromoUse(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	for i := int64(1); i <= 3; i++ {
		got, err := store.RecordPromoUse()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != i {
			t.Fatalf("expected usage %d, got %d", i, got)
		}
	}

	usage, err := store.PromoUsage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage != 3 {
		t.Fatalf("expected usage 3, got %d", usage)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(3)

		go func(offset int) {
			defer wg.Done()
			rules := calculator.Rules{TaxRate: 0.1, FreeShipThreshold: float64(100 + offset), ShipPerKg: 2.5}
			if err := store.SetRules(rules); err != nil {
				t.Errorf("SetRules failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.GetRules(); err != nil {
				t.Errorf("GetRules failed: %v", err)
			}
		}()

		go func() {
			defer wg.Done()
			if _, err := store.RecordPromoUse(); err != nil {
				t.Errorf("RecordPromoUse failed: %v", err)
			}
		}()
	}

	wg.Wait()

	usage, err := store.PromoUsage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage != 32 {
		t.Fatalf("expected 32 promo uses, got %d", usage)
	}
}
