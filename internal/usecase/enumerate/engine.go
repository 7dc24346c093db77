package enumerate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yycdata/mlxsweep/internal/domain"
	"github.com/yycdata/mlxsweep/internal/metrics"
	"github.com/yycdata/mlxsweep/internal/usecase/partition"
)

// Area is one geographic unit to sweep.
type Area struct {
	Code string
	Name string
	Kind domain.AreaKind
}

// Config bounds the sweep: which areas, which build years, and the price
// band every window starts from.
type Config struct {
	Areas     []Area
	YearFrom  int
	YearTo    int
	PriceFrom int
	PriceTo   int
	Dwelling  string
	Workers   int
}

// AreaProgress is a point-in-time view of one area's sweep, served by the
// status endpoint.
type AreaProgress struct {
	Area       string `json:"area"`
	YearsDone  int    `json:"years_done"`
	YearsTotal int    `json:"years_total"`
	Records    int    `json:"records"`
	Partials   int    `json:"partials"`
}

// Engine drives the sweep: areas in parallel, years within an area in
// sequence so the per-area deduplication set stays coherent.
type Engine struct {
	resolver Resolver
	sink     Sink
	cp       *Checkpoint
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Crawl

	mu       sync.Mutex
	progress map[string]*AreaProgress
}

func New(resolver Resolver, sink Sink, cp *Checkpoint, cfg Config, logger *zap.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	e := &Engine{
		resolver: resolver,
		sink:     sink,
		cp:       cp,
		cfg:      cfg,
		logger:   logger,
		progress: make(map[string]*AreaProgress, len(cfg.Areas)),
	}
	for _, a := range cfg.Areas {
		e.progress[a.Code] = &AreaProgress{
			Area:       a.Code,
			YearsTotal: cfg.YearTo - cfg.YearFrom + 1,
		}
	}
	return e
}

func (e *Engine) WithMetrics(m *metrics.Crawl) *Engine {
	e.metrics = m
	return e
}

// Run sweeps every configured area. It returns on the first persistence
// failure or on cancellation; remote-side trouble never aborts the run.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, area := range e.cfg.Areas {
		g.Go(func() error {
			return e.runArea(ctx, area)
		})
	}
	return g.Wait()
}

func (e *Engine) runArea(ctx context.Context, area Area) error {
	log := e.logger.With(
		zap.String("area", area.Code), zap.String("area_name", area.Name))

	// One deduplication set across every year of the area: cross-listed
	// records surface in multiple year windows and must be stored once.
	agg := partition.NewAggregator()

	for year := e.cfg.YearFrom; year <= e.cfg.YearTo; year++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.cp.Done(area.Code, year) {
			log.Debug("slice already persisted, skipping", zap.Int("year", year))
			e.advance(area.Code, 0, true)
			continue
		}

		w, err := domain.NewWindow(
			area.Code, area.Name, area.Kind, year,
			e.cfg.PriceFrom, e.cfg.PriceTo, e.cfg.Dwelling)
		if err != nil {
			return fmt.Errorf("window %s/%d: %w", area.Code, year, err)
		}

		res, err := e.resolver.Resolve(ctx, w)
		if err != nil {
			return err
		}

		before := agg.Size()
		agg.Merge(res.Records)
		fresh := agg.Records()[before:]

		if err := e.sink.Save(ctx, area.Code, year, fresh); err != nil {
			return fmt.Errorf("save %s/%d: %w", area.Code, year, err)
		}
		if err := e.cp.MarkDone(area.Code, year, len(fresh), res.Complete); err != nil {
			// The data itself is persisted; a stale checkpoint only costs
			// re-querying this slice after a restart.
			log.Warn("checkpoint update failed", zap.Int("year", year), zap.Error(err))
		}
		e.advance(area.Code, len(fresh), res.Complete)

		log.Info("slice done",
			zap.Int("year", year),
			zap.Int("total_found", res.TotalFound),
			zap.Int("fresh", len(fresh)),
			zap.Bool("complete", res.Complete))
	}

	if e.metrics != nil {
		e.metrics.AreasDone.Inc()
	}
	log.Info("area done", zap.Int("records", agg.Size()))
	return nil
}

func (e *Engine) advance(area string, fresh int, complete bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.progress[area]
	if p == nil {
		return
	}
	p.YearsDone++
	p.Records += fresh
	if !complete {
		p.Partials++
	}
}

// Progress snapshots every area's state, ordered by area code.
func (e *Engine) Progress() []AreaProgress {
	e.mu.Lock()
	out := make([]AreaProgress, 0, len(e.progress))
	for _, p := range e.progress {
		out = append(out, *p)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Area < out[j].Area })
	return out
}
