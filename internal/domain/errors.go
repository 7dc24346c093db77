package domain

import "errors"

var (
	// ErrBadPriceRange signals a negative or inverted price range.
	ErrBadPriceRange = errors.New("bad price range")
	// ErrAreaNotFound signals an area the typeahead endpoint does not know.
	ErrAreaNotFound = errors.New("area not found")
	// ErrGeocodeFailed signals that no centroid could be resolved for an area.
	ErrGeocodeFailed = errors.New("geocode failed")
	// ErrSessionExpired signals that the persisted search session is stale.
	ErrSessionExpired = errors.New("session expired")
)
