package service

import (
	"testing"

	"propfinder/internal/config"
	"propfinder/internal/currency"
	"propfinder/internal/model"
)

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		ExactTolerancePercent:    0.02,
		ExactToleranceAbsEUR:     50,
		NearMissTolerancePercent: 0.15,
		NearMissToleranceAbsEUR:  2000,
	}
}

func newTestResolver() *IntentResolver {
	return NewIntentResolver(testPricing(), currency.Rates{USDToEUR: 0.5, GBPToEUR: 2})
}

func TestResolvePriceIntent(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name       string
		query      string
		wantType   model.PriceIntentType
		wantMin    float64
		wantMax    float64
		wantTarget float64
	}{
		{"under with plain number", "land under 50000 near Porto", model.PriceIntentUnder, 0, 50000, 0},
		{"under with k suffix", "apartment under 120k", model.PriceIntentUnder, 0, 120000, 0},
		{"under with euro grouping", "casa até 50.000", model.PriceIntentUnder, 0, 50000, 0},
		{"up to phrasing", "house up to €300,000", model.PriceIntentUnder, 0, 300000, 0},
		{"over", "farm over 100000", model.PriceIntentOver, 100000, 0, 0},
		{"at least", "plot at least 20k", model.PriceIntentOver, 20000, 0, 0},
		{"between", "house between 100k and 150k", model.PriceIntentBetween, 100000, 150000, 0},
		{"between reversed bounds", "between 150000 and 100000", model.PriceIntentBetween, 100000, 150000, 0},
		{"dash range", "apartment 80000 - 95000", model.PriceIntentBetween, 80000, 95000, 0},
		{"around", "terreno around 20000", model.PriceIntentAround, 0, 0, 20000},
		{"about with decimal m", "villa about 1.5m", model.PriceIntentAround, 0, 0, 1500000},
		{"exactly", "house exactly 75000", model.PriceIntentExact, 0, 0, 75000},
		{"bare price", "moradia 250000 lisboa", model.PriceIntentExact, 0, 0, 250000},
		{"no price", "sunny apartment near the beach", model.PriceIntentNone, 0, 0, 0},
		{"small numbers ignored", "3 bedroom apartment with 2 baths", model.PriceIntentNone, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.query, "EUR").Price
			if got.Type != tt.wantType {
				t.Fatalf("type = %s, want %s", got.Type, tt.wantType)
			}
			if tt.wantMin != 0 && (got.Min == nil || *got.Min != tt.wantMin) {
				t.Errorf("min = %v, want %v", got.Min, tt.wantMin)
			}
			if tt.wantMax != 0 && (got.Max == nil || *got.Max != tt.wantMax) {
				t.Errorf("max = %v, want %v", got.Max, tt.wantMax)
			}
			if tt.wantTarget != 0 && (got.Target == nil || *got.Target != tt.wantTarget) {
				t.Errorf("target = %v, want %v", got.Target, tt.wantTarget)
			}
		})
	}
}

func TestResolveCurrencyDetection(t *testing.T) {
	r := newTestResolver()

	if got := r.Resolve("house under $200000", "EUR").Price.Currency; got != "USD" {
		t.Errorf("currency = %s, want USD", got)
	}
	if got := r.Resolve("house under £200000", "EUR").Price.Currency; got != "GBP" {
		t.Errorf("currency = %s, want GBP", got)
	}
	// No symbol falls back to the caller's location currency
	if got := r.Resolve("house under 200000", "GBP").Price.Currency; got != "GBP" {
		t.Errorf("currency = %s, want fallback GBP", got)
	}
	if got := r.Resolve("house under 200000", "").Price.Currency; got != "EUR" {
		t.Errorf("currency = %s, want default EUR", got)
	}
}

func TestResolveTypeHints(t *testing.T) {
	r := newTestResolver()

	res := r.Resolve("terreno para construção under 50000 to buy", "EUR")
	if res.PropertyType == nil || *res.PropertyType != "land" {
		t.Errorf("propertyType = %v, want land", res.PropertyType)
	}
	if res.ListingType == nil || *res.ListingType != "sale" {
		t.Errorf("listingType = %v, want sale", res.ListingType)
	}

	res = r.Resolve("apartamento to rent in Faro", "EUR")
	if res.PropertyType == nil || *res.PropertyType != "apartment" {
		t.Errorf("propertyType = %v, want apartment", res.PropertyType)
	}
	if res.ListingType == nil || *res.ListingType != "rent" {
		t.Errorf("listingType = %v, want rent", res.ListingType)
	}
}

func TestBuildStrictPriceRange(t *testing.T) {
	r := newTestResolver()
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		intent  model.PriceIntent
		wantMin *float64
		wantMax *float64
	}{
		{
			name:    "under has no lower bound",
			intent:  model.PriceIntent{Type: model.PriceIntentUnder, Max: f(50000), Currency: "EUR"},
			wantMax: f(50000),
		},
		{
			name:    "over has no upper bound",
			intent:  model.PriceIntent{Type: model.PriceIntentOver, Min: f(100000), Currency: "EUR"},
			wantMin: f(100000),
		},
		{
			name:    "between keeps both bounds",
			intent:  model.PriceIntent{Type: model.PriceIntentBetween, Min: f(100), Max: f(200), Currency: "EUR"},
			wantMin: f(100),
			wantMax: f(200),
		},
		{
			// delta = min(20000*0.02, 50) = 50
			name:    "around takes smaller of pct and cap",
			intent:  model.PriceIntent{Type: model.PriceIntentAround, Target: f(20000), Currency: "EUR"},
			wantMin: f(19950),
			wantMax: f(20050),
		},
		{
			// delta = min(1000*0.02, 50) = 20
			name:    "around small target uses pct",
			intent:  model.PriceIntent{Type: model.PriceIntentAround, Target: f(1000), Currency: "EUR"},
			wantMin: f(980),
			wantMax: f(1020),
		},
		{
			name:   "none stays unbounded",
			intent: model.PriceIntent{Type: model.PriceIntentNone, Currency: "EUR"},
		},
		{
			// USD converted at test rate 0.5
			name:    "usd normalized to eur",
			intent:  model.PriceIntent{Type: model.PriceIntentUnder, Max: f(100000), Currency: "USD"},
			wantMax: f(50000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.BuildStrictPriceRange(tt.intent)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Currency != "EUR" {
				t.Errorf("currency = %s, want EUR", got.Currency)
			}
			checkBound(t, "min", got.MinEUR, tt.wantMin)
			checkBound(t, "max", got.MaxEUR, tt.wantMax)
		})
	}
}

func TestBuildStrictPriceRangeUnsupportedCurrency(t *testing.T) {
	r := newTestResolver()
	v := 100.0
	_, err := r.BuildStrictPriceRange(model.PriceIntent{Type: model.PriceIntentUnder, Max: &v, Currency: "JPY"})
	if err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}

func TestNearMissContainsStrict(t *testing.T) {
	r := newTestResolver()
	f := func(v float64) *float64 { return &v }

	intents := []model.PriceIntent{
		{Type: model.PriceIntentUnder, Max: f(50000), Currency: "EUR"},
		{Type: model.PriceIntentOver, Min: f(100000), Currency: "EUR"},
		{Type: model.PriceIntentBetween, Min: f(80000), Max: f(95000), Currency: "EUR"},
		{Type: model.PriceIntentExact, Target: f(75000), Currency: "EUR"},
		{Type: model.PriceIntentAround, Target: f(20000), Currency: "EUR"},
		{Type: model.PriceIntentAround, Target: f(500), Currency: "EUR"},
		{Type: model.PriceIntentNone, Currency: "EUR"},
	}

	for _, intent := range intents {
		t.Run(string(intent.Type), func(t *testing.T) {
			strict, err := r.BuildStrictPriceRange(intent)
			if err != nil {
				t.Fatalf("strict: %v", err)
			}
			near, err := r.BuildNearMissPriceRange(intent)
			if err != nil {
				t.Fatalf("near: %v", err)
			}

			if strict.MinEUR != nil {
				if near.MinEUR == nil {
					t.Fatal("near-miss lost the lower bound")
				}
				if *near.MinEUR > *strict.MinEUR {
					t.Errorf("near-miss min %v above strict min %v", *near.MinEUR, *strict.MinEUR)
				}
			}
			if strict.MaxEUR != nil {
				if near.MaxEUR == nil {
					t.Fatal("near-miss lost the upper bound")
				}
				if *near.MaxEUR < *strict.MaxEUR {
					t.Errorf("near-miss max %v below strict max %v", *near.MaxEUR, *strict.MaxEUR)
				}
			}
			if intent.Type == model.PriceIntentNone {
				if !strict.Unbounded() || !near.Unbounded() {
					t.Error("none intent must stay unbounded in both passes")
				}
			}
		})
	}
}

func TestNearMissDeltaTakesLarger(t *testing.T) {
	r := newTestResolver()
	f := func(v float64) *float64 { return &v }

	// target 20000: max(20000*0.15, 2000) = 3000
	near, err := r.BuildNearMissPriceRange(model.PriceIntent{Type: model.PriceIntentAround, Target: f(20000), Currency: "EUR"})
	if err != nil {
		t.Fatal(err)
	}
	if *near.MinEUR != 17000 || *near.MaxEUR != 23000 {
		t.Errorf("near-miss = [%v, %v], want [17000, 23000]", *near.MinEUR, *near.MaxEUR)
	}

	// target 1500: max(225, 2000) = 2000, lower bound clamps at 0
	near, err = r.BuildNearMissPriceRange(model.PriceIntent{Type: model.PriceIntentAround, Target: f(1500), Currency: "EUR"})
	if err != nil {
		t.Fatal(err)
	}
	if *near.MinEUR != 0 {
		t.Errorf("lower bound should clamp at 0, got %v", *near.MinEUR)
	}
	if *near.MaxEUR != 3500 {
		t.Errorf("upper bound = %v, want 3500", *near.MaxEUR)
	}
}

func checkBound(t *testing.T, name string, got, want *float64) {
	t.Helper()
	if want == nil {
		if got != nil {
			t.Errorf("%s = %v, want nil", name, *got)
		}
		return
	}
	if got == nil {
		t.Fatalf("%s = nil, want %v", name, *want)
	}
	if *got != *want {
		t.Errorf("%s = %v, want %v", name, *got, *want)
	}
}
