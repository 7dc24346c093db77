package partition

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/domain"
	"github.com/yycdata/mlxsweep/internal/metrics"
)

// Config holds the partitioning knobs.
type Config struct {
	// PriceStep is the initial bucket width of the price-subdivision fallback.
	PriceStep int
	// MinPriceStep floors the recursive refinement; a bucket still incomplete
	// at this width is accepted as partial.
	MinPriceStep int
	// TileRadius is the bounding-box half-side for tile queries, in degrees.
	TileRadius float64
	// RetryRadius is the enlarged half-side used by the stale-tile retry.
	RetryRadius float64
}

// refineFactor divides the price step at each recursion level.
const refineFactor = 10

// Planner resolves one window into a complete partition whenever tile
// expansion and price subdivision can get there, and a best-effort partial
// result otherwise. The totalFound observed by the window's sentinel query
// is the completeness target for its whole lifetime; later drift in the
// remote count is ignored.
type Planner struct {
	search  Searcher
	geo     Geocoder
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Crawl
}

// New creates a planner.
func New(search Searcher, geo Geocoder, cfg Config, logger *zap.Logger) *Planner {
	if cfg.TileRadius <= 0 {
		cfg.TileRadius = 0.02
	}
	if cfg.RetryRadius <= 0 {
		cfg.RetryRadius = 0.03
	}
	if cfg.MinPriceStep <= 0 {
		cfg.MinPriceStep = 1
	}
	return &Planner{search: search, geo: geo, cfg: cfg, logger: logger}
}

// WithMetrics attaches crawl metrics. Nil metrics are tolerated everywhere.
func (p *Planner) WithMetrics(m *metrics.Crawl) *Planner {
	p.metrics = m
	return p
}

// Resolve enumerates every record in the window. The returned error is
// non-nil only on cancellation; all remote failures degrade to a partial
// result instead.
func (p *Planner) Resolve(ctx context.Context, w domain.Window) (domain.PartitionResult, error) {
	centroid, err := p.geo.Centroid(ctx, w.AreaName())
	if err != nil {
		if ctx.Err() != nil {
			return domain.PartitionResult{}, ctx.Err()
		}
		// Without a centroid the frontier seeds only the sentinel and stale
		// tiles cannot be recentered; the window is still worth attempting.
		p.logger.Warn("centroid lookup failed",
			zap.String("area", w.AreaName()), zap.Error(err))
		centroid = domain.Point{}
	}
	res, err := p.resolve(ctx, w, centroid, p.cfg.PriceStep)
	if err != nil {
		return res, err
	}
	if p.metrics != nil {
		if res.Complete {
			p.metrics.WindowsTotal.WithLabelValues("complete").Inc()
		} else {
			p.metrics.WindowsTotal.WithLabelValues("partial").Inc()
		}
	}
	return res, nil
}

// resolve runs tile expansion and, when that exhausts short of the target,
// price subdivision with the given bucket width.
func (p *Planner) resolve(
	ctx context.Context, w domain.Window, centroid domain.Point, step int,
) (domain.PartitionResult, error) {
	log := p.logger.With(zap.Stringer("window", w))

	agg := NewAggregator()
	frontier := NewFrontier()
	frontier.Seed(centroid)

	total := -1 // unset until the sentinel query succeeds

	for !frontier.Empty() {
		if err := ctx.Err(); err != nil {
			return partial(total, agg), err
		}

		tile := frontier.Pop()
		res, ok := p.queryTile(ctx, log, w, tile, centroid)
		if !ok {
			if err := ctx.Err(); err != nil {
				return partial(total, agg), err
			}
			continue
		}

		if total < 0 && tile.Sentinel() {
			// Only the unbounded query may set the completeness target. A
			// tile-bounded totalFound is scoped to its box and would declare
			// a truncated window complete.
			total = res.TotalFound
			if total == 0 {
				// Empty windows are always complete, one call.
				return domain.PartitionResult{TotalFound: 0, Complete: true}, nil
			}
		}

		if n := agg.Merge(res.Records); p.metrics != nil {
			p.metrics.RecordsMerged.Add(float64(n))
			p.metrics.DuplicatesSeen.Add(float64(len(res.Records) - n))
		}
		for _, t := range res.Tiles {
			if frontier.EnqueueIfNew(t) {
				log.Debug("tile discovered",
					zap.Int64("tile_id", t.ID), zap.Int("advisory_count", t.Count))
			}
		}

		if total >= 0 && agg.Size() >= total {
			// Complete; no further queries for this window.
			return domain.PartitionResult{
				TotalFound: total,
				Records:    agg.Records(),
				Complete:   true,
			}, nil
		}
	}

	if total < 0 {
		// The sentinel query never succeeded, so the window has no trusted
		// completeness target. Whatever the tiles yielded is kept, but the
		// window stays unresolved; subdividing without a target is pointless.
		log.Warn("window unresolved, sentinel query failed",
			zap.Int("have", agg.Size()))
		return partial(total, agg), nil
	}

	log.Info("tile expansion exhausted short of total",
		zap.Int("have", agg.Size()), zap.Int("total", total))

	return p.subdividePrice(ctx, log, w, centroid, step, total, agg)
}

// queryTile issues the search for one frontier entry, applying the stale-tile
// retry when a tile with a nonzero advisory count comes back empty. ok is
// false when the partition stays unresolved (transport failure or dead tile).
func (p *Planner) queryTile(
	ctx context.Context, log *zap.Logger,
	w domain.Window, tile domain.Tile, centroid domain.Point,
) (domain.SearchResult, bool) {
	var box *domain.BoundingBox
	kind := "seed"
	if !tile.Sentinel() {
		b := tile.Bound(p.cfg.TileRadius)
		box = &b
		kind = "tile"
		if p.metrics != nil {
			p.metrics.TilesVisited.Inc()
		}
	}

	res, err := p.doSearch(ctx, w, box, kind)
	if err != nil {
		// One bad query must not abort the window.
		log.Warn("search failed, partition unresolved",
			zap.Int64("tile_id", tile.ID), zap.Error(err))
		return domain.SearchResult{}, false
	}

	if res.Empty() && tile.Count > 0 && centroid != (domain.Point{}) {
		// The tile went stale between the response that advertised it and
		// now. Recenter on the area centroid with a wider box, once.
		log.Debug("stale tile, recentering",
			zap.Int64("tile_id", tile.ID),
			zap.Int("advisory_count", tile.Count),
			zap.Float64("lat", tile.Lat), zap.Float64("lon", tile.Lon))

		retry := domain.NewBoundingBox(centroid.Lat, centroid.Lon, p.cfg.RetryRadius)
		res, err = p.doSearch(ctx, w, &retry, "retry")
		if err != nil || res.Empty() {
			log.Warn("stale tile abandoned",
				zap.Int64("tile_id", tile.ID),
				zap.Int("advisory_count", tile.Count),
				zap.Float64("lat", tile.Lat), zap.Float64("lon", tile.Lon),
				zap.Error(err))
			if p.metrics != nil {
				p.metrics.StaleTiles.Inc()
			}
			return domain.SearchResult{}, false
		}
	}

	return res, true
}

func (p *Planner) doSearch(
	ctx context.Context, w domain.Window, box *domain.BoundingBox, kind string,
) (domain.SearchResult, error) {
	start := time.Now()
	res, err := p.search.Search(ctx, w, box)
	if p.metrics != nil {
		p.metrics.QueriesTotal.WithLabelValues(kind).Inc()
		p.metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	return res, err
}

// subdividePrice splits the window's price band into buckets of the given
// width and resolves each recursively with a width one refineFactor finer.
// Records are merged across buckets because price data is inconsistent at
// bucket boundaries.
func (p *Planner) subdividePrice(
	ctx context.Context, log *zap.Logger,
	w domain.Window, centroid domain.Point,
	step, total int, agg *Aggregator,
) (domain.PartitionResult, error) {
	if w.PriceTo() <= w.PriceFrom() {
		// No price axis to split on; accept what tiling found.
		log.Warn("window incomplete and price band is unbounded",
			zap.Int("have", agg.Size()), zap.Int("total", total))
		return partial(total, agg), nil
	}
	if step < p.cfg.MinPriceStep {
		// Recursion floor: accepted as partial, not a failure.
		log.Warn("price step floor reached, accepting partial window",
			zap.Int("have", agg.Size()), zap.Int("total", total),
			zap.Int("min_price_step", p.cfg.MinPriceStep))
		if p.metrics != nil {
			p.metrics.FloorHits.Inc()
		}
		return partial(total, agg), nil
	}

	if p.metrics != nil {
		p.metrics.PriceSplits.Inc()
	}
	log.Info("subdividing by price",
		zap.Int("step", step), zap.Int("have", agg.Size()), zap.Int("total", total))

	for from := w.PriceFrom(); from < w.PriceTo(); from += step {
		to := from + step
		if to > w.PriceTo() {
			to = w.PriceTo()
		}
		bucket, err := w.WithPriceBand(from, to)
		if err != nil {
			log.Warn("skipping malformed price bucket", zap.Error(err))
			continue
		}

		res, err := p.resolve(ctx, bucket, centroid, step/refineFactor)
		if err != nil {
			return partial(total, agg), err
		}
		if n := agg.Merge(res.Records); p.metrics != nil {
			p.metrics.RecordsMerged.Add(float64(n))
			p.metrics.DuplicatesSeen.Add(float64(len(res.Records) - n))
		}

		if agg.Size() >= total {
			break
		}
	}

	return domain.PartitionResult{
		TotalFound: total,
		Records:    agg.Records(),
		Complete:   agg.Size() >= total,
	}, nil
}

func partial(total int, agg *Aggregator) domain.PartitionResult {
	if total < 0 {
		total = 0
	}
	return domain.PartitionResult{
		TotalFound: total,
		Records:    agg.Records(),
		Complete:   false,
	}
}
