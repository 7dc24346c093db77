package metrics

import "github.com/prometheus/client_golang/prometheus"

// Crawl holds all Prometheus metrics of the enumeration pipeline.
// Registered on an explicit registry, no init().
type Crawl struct {
	QueriesTotal   *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	RecordsMerged  prometheus.Counter
	DuplicatesSeen prometheus.Counter
	TilesVisited   prometheus.Counter
	StaleTiles     prometheus.Counter
	PriceSplits    prometheus.Counter
	FloorHits      prometheus.Counter
	WindowsTotal   *prometheus.CounterVec
	GeocodeCache   *prometheus.CounterVec
	AreasDone      prometheus.Gauge
}

// NewCrawl creates and registers the crawl metrics.
// Query kind label: seed, tile, retry. Window result label: complete, partial.
func NewCrawl(reg prometheus.Registerer) *Crawl {
	m := &Crawl{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "queries_total",
			Help:      "Search queries issued against the remote endpoint",
		}, []string{"kind"}),

		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mlxsweep",
			Name:      "query_duration_seconds",
			Help:      "Search query round-trip duration",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),

		RecordsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "records_merged_total",
			Help:      "Unique records merged into aggregators",
		}),

		DuplicatesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "duplicates_seen_total",
			Help:      "Records rejected by identity dedup",
		}),

		TilesVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "tiles_visited_total",
			Help:      "Tiles popped from frontiers and queried",
		}),

		StaleTiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "stale_tiles_total",
			Help:      "Tiles abandoned after the recenter retry came back empty",
		}),

		PriceSplits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "price_splits_total",
			Help:      "Windows that fell back to price subdivision",
		}),

		FloorHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "price_floor_hits_total",
			Help:      "Windows still incomplete at the minimum price step",
		}),

		WindowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "windows_total",
			Help:      "Resolved windows by completeness",
		}, []string{"result"}),

		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlxsweep",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups",
		}, []string{"result"}),

		AreasDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mlxsweep",
			Name:      "areas_done",
			Help:      "Areas fully enumerated and persisted",
		}),
	}

	reg.MustRegister(
		m.QueriesTotal, m.QueryDuration,
		m.RecordsMerged, m.DuplicatesSeen,
		m.TilesVisited, m.StaleTiles,
		m.PriceSplits, m.FloorHits,
		m.WindowsTotal, m.GeocodeCache,
		m.AreasDone,
	)

	return m
}
