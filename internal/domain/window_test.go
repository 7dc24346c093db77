package domain

import (
	"errors"
	"testing"
)

func mustWindow(t *testing.T) Window {
	t.Helper()
	w, err := NewWindow("C-443", "Arbour Lake", AreaSubarea, 1995, 600000, 650000, "DET")
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	return w
}

func TestNewWindow_Validation(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		kind     AreaKind
		from, to int
		dwelling string
		wantErr  bool
	}{
		{"valid", "C-443", AreaSubarea, 600000, 650000, "DET", false},
		{"valid community", "C-508", AreaCommunity, 0, 0, "DET", false},
		{"missing code", "", AreaSubarea, 0, 0, "DET", true},
		{"bad kind", "C-443", AreaKind("DISTRICT"), 0, 0, "DET", true},
		{"negative price", "C-443", AreaSubarea, -1, 100, "DET", true},
		{"inverted range", "C-443", AreaSubarea, 200, 100, "DET", true},
		{"missing dwelling", "C-443", AreaSubarea, 0, 0, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWindow(tc.code, "Arbour Lake", tc.kind, 1995, tc.from, tc.to, tc.dwelling)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestWindow_WithPriceBand(t *testing.T) {
	w := mustWindow(t)

	sub, err := w.WithPriceBand(610000, 620000)
	if err != nil {
		t.Fatalf("WithPriceBand: %v", err)
	}
	if sub.PriceFrom() != 610000 || sub.PriceTo() != 620000 {
		t.Errorf("sub band = %d-%d", sub.PriceFrom(), sub.PriceTo())
	}
	if sub.AreaCode() != w.AreaCode() || sub.Year() != w.Year() || sub.Dwelling() != w.Dwelling() {
		t.Error("derived window changed non-price fields")
	}
	// Receiver untouched.
	if w.PriceFrom() != 600000 || w.PriceTo() != 650000 {
		t.Errorf("receiver mutated: %d-%d", w.PriceFrom(), w.PriceTo())
	}

	if _, err := w.WithPriceBand(700000, 600000); !errors.Is(err, ErrBadPriceRange) {
		t.Errorf("expected ErrBadPriceRange, got %v", err)
	}
}

func TestWindow_Equality(t *testing.T) {
	a := mustWindow(t)
	b := mustWindow(t)
	if a != b {
		t.Error("identical windows compare unequal")
	}
	c, _ := a.WithPriceBand(600000, 610000)
	if a == c {
		t.Error("windows with different bands compare equal")
	}
}
