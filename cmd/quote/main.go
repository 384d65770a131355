package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/order-totals/internal/calculator"
	"github.com/eugenenazirov/order-totals/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "order-quote: %v\n", err)
		os.Exit(1)
	}
}

// run prices the cart document named on the command line and writes the
// result to out.
func run(args []string, out io.Writer) error {
	app := kingpin.New("order-quote", "Prices a cart document (YAML or JSON) offline")
	cartFile := app.Arg("cart", "Path to a YAML or JSON document holding a cart, or {cart, options}").Required().String()
	configFile := app.Flag("config", "Path to YAML service configuration providing pricing defaults").String()
	promoCode := app.Flag("promo-code", "Promo code to apply, overrides the document").String()
	var daySet, taxSet, thresholdSet, shipSet bool
	dayOfWeek := app.Flag("day-of-week", "Day of week, 0 = Sunday").IsSetByUser(&daySet).Int()
	taxRate := app.Flag("tax-rate", "Base tax rate as a fraction").IsSetByUser(&taxSet).Float64()
	freeShipThreshold := app.Flag("free-ship-threshold", "Tax-inclusive amount at which shipping is waived").IsSetByUser(&thresholdSet).Float64()
	shipPerKg := app.Flag("ship-per-kg", "Shipping cost per started kilogram").IsSetByUser(&shipSet).Float64()
	asJSON := app.Flag("json", "Print the full breakdown as JSON").Bool()

	if _, err := app.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(&config.CLIOverrides{ConfigFile: *configFile})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	cart, opts, err := loadCartDocument(*cartFile)
	if err != nil {
		return err
	}

	if *promoCode != "" {
		opts.PromoCode = *promoCode
	}
	if daySet {
		opts.DayOfWeek = dayOfWeek
	}
	if taxSet {
		opts.TaxRate = taxRate
	}
	if thresholdSet {
		opts.FreeShipThreshold = freeShipThreshold
	}
	if shipSet {
		opts.ShipPerKg = shipPerKg
	}

	quote := calculator.New().Quote(cart, opts, cfg.Pricing)

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(quoteDocument{Quote: quote, Counters: opts.Counters})
	}
	return printQuote(out, quote, opts.Counters)
}

// quoteDocument matches the body returned by the HTTP quote endpoint.
type quoteDocument struct {
	calculator.Quote
	Counters *calculator.Counters `json:"counters,omitempty"`
}

// loadCartDocument reads a document that is either a bare cart sequence or a
// mapping with cart and options keys. JSON documents parse as YAML.
func loadCartDocument(path string) ([]*calculator.CartLine, calculator.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, calculator.Config{}, fmt.Errorf("read cart: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, calculator.Config{}, fmt.Errorf("parse cart: %w", err)
	}

	if fields, ok := doc.(map[string]any); ok {
		return calculator.ParseCart(fields["cart"]), calculator.ParseConfig(fields["options"]), nil
	}
	return calculator.ParseCart(doc), calculator.Config{}, nil
}

func printQuote(out io.Writer, q calculator.Quote, counters *calculator.Counters) error {
	discount := string(q.DiscountKind)
	if discount == "" {
		discount = "none"
	}
	_, err := fmt.Fprintf(out,
		"lines:     %d\nsubtotal:  %.2f\ndiscount:  %.2f (%s)\ntax rate:  %.2f%%\ntaxed:     %.2f\nshipping:  %.2f\ntotal:     %.2f\n",
		q.ValidLines, q.Subtotal, q.Discount, discount, q.EffectiveTaxRate*100, q.Taxed, q.Shipping, q.Total,
	)
	if err != nil || counters == nil {
		return err
	}
	_, err = fmt.Fprintf(out, "promo used: %v\n", counters.PromoUsed)
	return err
}
