package payments

import (
	"log/slog"
	"strings"
	"testing"
)

func TestPriceToCents(t *testing.T) {
	cases := map[string]int64{
		"50.00":   5000,
		"50":      5000,
		"0.99":    99,
		"120.5":   12050,
		"120.505": 12050,
	}
	for in, want := range cases {
		got, err := priceToCents(in)
		if err != nil {
			t.Fatalf("priceToCents(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("priceToCents(%q) = %d, want %d", in, got, want)
		}
	}
	if _, err := priceToCents("abc"); err == nil {
		t.Fatalf("expected error for non-numeric price")
	}
}

func TestCreateDepositIntent_SimulatedWithoutKey(t *testing.T) {
	p := NewProvider("", "", slog.Default())
	intent, err := p.CreateDepositIntent("appt-1", "50.00")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !intent.Simulated {
		t.Fatalf("expected simulated intent")
	}
	if !strings.HasPrefix(intent.ID, "sim_") {
		t.Fatalf("expected sim_ prefix, got %q", intent.ID)
	}
	if intent.AmountCents != 5000 || intent.Currency != "brl" {
		t.Fatalf("unexpected intent %+v", intent)
	}
}
