package currency

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   int64
	}{
		{"19.99", "USD", 1999},
		{"19.99", "usd", 1999},
		{"0.5", "CAD", 50},
		{"10.005", "EUR", 1001},
		{"1500", "JPY", 1500},
		{"1500.6", "JPY", 1501},
		{"1.234", "KWD", 1234},
	}
	for _, tt := range tests {
		got := ToMinorUnits(decimal.RequireFromString(tt.amount), tt.code).IntPart()
		if got != tt.want {
			t.Fatalf("ToMinorUnits(%s, %s) = %d, want %d", tt.amount, tt.code, got, tt.want)
		}
	}
}

func TestFromMinorUnits(t *testing.T) {
	if got := FromMinorUnits(1999, "USD"); !got.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("expected 19.99, got %s", got)
	}
	if got := FromMinorUnits(1500, "JPY"); !got.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected 1500, got %s", got)
	}
}

func TestSymbol(t *testing.T) {
	if Symbol("cad") != "$" {
		t.Fatalf("expected $ for CAD, got %q", Symbol("cad"))
	}
	if Symbol("xyz") != "XYZ" {
		t.Fatalf("expected code fallback, got %q", Symbol("xyz"))
	}
}
