package partition

import (
	"context"

	"github.com/yycdata/mlxsweep/internal/domain"
)

// Searcher issues one search call against the remote endpoint. A nil box
// means no spatial narrowing (the sentinel query). Rate limiting, session
// state, timeouts, and retry of transient failures all live behind this
// interface.
type Searcher interface {
	Search(ctx context.Context, w domain.Window, box *domain.BoundingBox) (domain.SearchResult, error)
}

// Geocoder resolves an area name to its centroid, used to seed the tile
// frontier and to recenter stale tiles.
type Geocoder interface {
	Centroid(ctx context.Context, area string) (domain.Point, error)
}
