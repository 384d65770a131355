package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eugenenazirov/order-totals/internal/calculator"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearPricingEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TAX_RATE", "FREE_SHIP_THRESHOLD", "SHIP_PER_KG", "LOG_LEVEL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "METRICS_ENABLED", "TRUST_FORWARDED_FOR"} {
		t.Setenv(key, "")
	}
}

func TestRunPrintsTotal(t *testing.T) {
	clearPricingEnv(t)

	path := writeFile(t, "cart.yaml", `
cart:
  - price: 20
    qty: 2
  - price: 15
    qty: 1
    weight: 0.4
options:
  taxRate: 0.1
  freeShipThreshold: 100
  shipPerKg: 3
`)

	var out bytes.Buffer
	if err := run([]string{path}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "total:     63.50") {
		t.Fatalf("expected total 63.50 in output:\n%s", out.String())
	}
}

func TestRunJSONCartWithFlagOverrides(t *testing.T) {
	clearPricingEnv(t)

	path := writeFile(t, "cart.json", `[{"price": 100, "qty": 1, "category": "lux", "weight": 1.2}]`)

	var out bytes.Buffer
	args := []string{path, "--json", "--day-of-week=3", "--tax-rate=0.1", "--free-ship-threshold=120", "--ship-per-kg=2.5"}
	if err := run(args, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var quote calculator.Quote
	if err := json.Unmarshal(out.Bytes(), &quote); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if quote.Total != 114.25 {
		t.Fatalf("expected total 114.25, got %v", quote.Total)
	}
	if quote.DiscountKind != calculator.DiscountMidweek {
		t.Fatalf("expected midweek discount, got %q", quote.DiscountKind)
	}
}

func TestRunReportsCounters(t *testing.T) {
	clearPricingEnv(t)

	path := writeFile(t, "cart.yaml", `
cart:
  - price: 90
    qty: 1
    weight: 0.5
  - price: 30
    qty: 1
options:
  promoCode: SAVE10
  freeShipThreshold: 110
  counters:
    promoUsed: 2
`)

	var text bytes.Buffer
	if err := run([]string{path}, &text); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(text.String(), "promo used: 3") {
		t.Fatalf("expected incremented promo counter in output:\n%s", text.String())
	}

	var out bytes.Buffer
	if err := run([]string{path, "--json"}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	for _, key := range []string{"validLines", "subtotal", "discountKind", "promoApplied", "taxed", "shipping", "total"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("expected key %q in JSON output: %s", key, out.String())
		}
	}
	if doc["total"] != 118.8 {
		t.Fatalf("expected total 118.8, got %v", doc["total"])
	}
	counters, ok := doc["counters"].(map[string]any)
	if !ok || counters["promoUsed"] != 3.0 {
		t.Fatalf("expected counters with promoUsed 3, got %v", doc["counters"])
	}
}

func TestRunUsesConfigFileRules(t *testing.T) {
	clearPricingEnv(t)

	cfgPath := writeFile(t, "config.yaml", "pricing:\n  tax_rate: 0\n  free_ship_threshold: 1000\n  ship_per_kg: 1\n")
	cartPath := writeFile(t, "cart.yaml", "- price: 10\n  qty: 2\n  weight: 0.3\n")

	var out bytes.Buffer
	if err := run([]string{cartPath, "--config", cfgPath, "--json"}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var quote calculator.Quote
	if err := json.Unmarshal(out.Bytes(), &quote); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if quote.Total != 21 {
		t.Fatalf("expected 20 + 1 shipping = 21, got %v", quote.Total)
	}
}

func TestRunEmptyCart(t *testing.T) {
	clearPricingEnv(t)

	path := writeFile(t, "cart.yaml", "cart: not-a-list\n")

	var out bytes.Buffer
	if err := run([]string{path}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "total:     0.00") {
		t.Fatalf("expected zero total:\n%s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	clearPricingEnv(t)

	var out bytes.Buffer
	if err := run([]string{filepath.Join(t.TempDir(), "missing.yaml")}, &out); err == nil {
		t.Fatalf("expected error for missing cart file")
	}

	bad := writeFile(t, "bad.yaml", "cart: [\n")
	if err := run([]string{bad}, &out); err == nil {
		t.Fatalf("expected error for malformed document")
	}

	if err := run(nil, &out); err == nil {
		t.Fatalf("expected error when cart argument is missing")
	}
}
