package currency

import (
	"errors"
	"testing"
)

func TestToEur(t *testing.T) {
	rates := Rates{USDToEUR: 0.9, GBPToEUR: 1.2}

	tests := []struct {
		name    string
		amount  float64
		code    string
		want    float64
		wantErr bool
	}{
		{"euro passthrough", 1000, "EUR", 1000, false},
		{"empty code unsupported", 500, "", 0, true},
		{"usd converted", 1000, "USD", 900, false},
		{"gbp converted", 1000, "GBP", 1200, false},
		{"lowercase code", 100, "usd", 90, false},
		{"whitespace code", 100, " eur ", 100, false},
		{"unsupported currency", 100, "JPY", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToEur(tt.amount, tt.code, rates)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedCurrency) {
					t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToEur() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGuessCurrency(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"€150,000", "EUR"},
		{"150000 EUR", "EUR"},
		{"£95,000", "GBP"},
		{"$120,000", "USD"},
		{"120000 usd", "USD"},
		{"just a number 42", ""},
	}

	for _, tt := range tests {
		if got := GuessCurrency(tt.raw); got != tt.want {
			t.Errorf("GuessCurrency(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
