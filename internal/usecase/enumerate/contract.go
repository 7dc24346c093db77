package enumerate

import (
	"context"

	"github.com/yycdata/mlxsweep/internal/domain"
)

// Resolver exhaustively enumerates one search window.
type Resolver interface {
	Resolve(ctx context.Context, w domain.Window) (domain.PartitionResult, error)
}

// Sink persists the records recovered for one (area, year) slice. Save is
// called once per slice with only the records not already persisted for
// that area in this run.
type Sink interface {
	Save(ctx context.Context, area string, year int, records []domain.Record) error
}
