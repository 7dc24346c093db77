package domain

import "fmt"

// AreaKind distinguishes the two location taxonomies the search endpoint
// understands. A subarea and a community with the same code are different
// places.
type AreaKind string

const (
	AreaSubarea   AreaKind = "SUBAREA"
	AreaCommunity AreaKind = "COMMUNITY"
)

// IsValid reports whether the kind is one of the known taxonomies.
func (k AreaKind) IsValid() bool {
	return k == AreaSubarea || k == AreaCommunity
}

// Window is one logical enumeration target: an area filtered by build year
// and a half-open price band [PriceFrom, PriceTo). Windows are immutable;
// price subdivision derives new Windows instead of mutating.
type Window struct {
	areaCode  string
	areaName  string
	areaKind  AreaKind
	year      int
	priceFrom int
	priceTo   int
	dwelling  string
}

// NewWindow validates and builds an enumeration window.
func NewWindow(
	areaCode, areaName string, kind AreaKind,
	year, priceFrom, priceTo int, dwelling string,
) (Window, error) {
	if areaCode == "" {
		return Window{}, fmt.Errorf("area code is required")
	}
	if areaName == "" {
		return Window{}, fmt.Errorf("area name is required")
	}
	if !kind.IsValid() {
		return Window{}, fmt.Errorf("unknown area kind: %q", kind)
	}
	if err := ValidatePriceRange(priceFrom, priceTo); err != nil {
		return Window{}, err
	}
	if dwelling == "" {
		return Window{}, fmt.Errorf("dwelling kind is required")
	}
	return Window{
		areaCode:  areaCode,
		areaName:  areaName,
		areaKind:  kind,
		year:      year,
		priceFrom: priceFrom,
		priceTo:   priceTo,
		dwelling:  dwelling,
	}, nil
}

// ValidatePriceRange rejects negative bounds and inverted ranges.
func ValidatePriceRange(from, to int) error {
	if from < 0 || to < 0 {
		return fmt.Errorf("%w: price values cannot be negative", ErrBadPriceRange)
	}
	if from > to {
		return fmt.Errorf("%w: price-from %d exceeds price-to %d", ErrBadPriceRange, from, to)
	}
	return nil
}

// WithPriceBand derives a sub-window covering [from, to) with every other
// field unchanged. The receiver is not modified.
func (w Window) WithPriceBand(from, to int) (Window, error) {
	if err := ValidatePriceRange(from, to); err != nil {
		return Window{}, err
	}
	sub := w
	sub.priceFrom = from
	sub.priceTo = to
	return sub, nil
}

// AreaCode returns the endpoint's area identifier (e.g. "C-443").
func (w Window) AreaCode() string { return w.areaCode }

// AreaName returns the human-readable area name.
func (w Window) AreaName() string { return w.areaName }

// AreaKind returns the area taxonomy.
func (w Window) AreaKind() AreaKind { return w.areaKind }

// Year returns the build year the window filters on.
func (w Window) Year() int { return w.year }

// PriceFrom returns the inclusive lower price bound. Zero means unbounded.
func (w Window) PriceFrom() int { return w.priceFrom }

// PriceTo returns the exclusive upper price bound. Zero means unbounded.
func (w Window) PriceTo() int { return w.priceTo }

// Dwelling returns the dwelling kind code (e.g. "DET").
func (w Window) Dwelling() string { return w.dwelling }

// String renders the window for log lines.
func (w Window) String() string {
	return fmt.Sprintf("%s[%s] year=%d price=%d-%d %s",
		w.areaCode, w.areaName, w.year, w.priceFrom, w.priceTo, w.dwelling)
}
