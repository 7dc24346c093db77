package listing

import (
	"context"

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/domain"
)

// BuiltYears resolves a construction year from a listing's detail page.
type BuiltYears interface {
	BuiltYear(ctx context.Context, detailURL string) (int, error)
}

// EnrichedSink fills in a missing YEAR_BUILT from the listing's detail page
// before handing records to the inner sink. Without it the mapper falls back
// to the slice year, which is only an upper bound on the construction year.
type EnrichedSink struct {
	inner  Sink
	years  BuiltYears
	logger *zap.Logger
}

func NewEnrichedSink(inner Sink, years BuiltYears, logger *zap.Logger) *EnrichedSink {
	return &EnrichedSink{inner: inner, years: years, logger: logger}
}

// Save enriches in place and delegates. A failed detail fetch only costs that
// record its refinement; cancellation still aborts the save.
func (s *EnrichedSink) Save(ctx context.Context, area string, year int, records []domain.Record) error {
	for _, rec := range records {
		if y, ok := rec.Num("YEAR_BUILT"); ok && y > 0 {
			continue
		}
		url := rec.Str("DETAIL_URL")
		if url == "" {
			continue
		}
		y, err := s.years.BuiltYear(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("built year lookup failed",
				zap.String("list_id", rec.ID()), zap.String("url", url), zap.Error(err))
			continue
		}
		rec["YEAR_BUILT"] = float64(y)
	}
	return s.inner.Save(ctx, area, year, records)
}
