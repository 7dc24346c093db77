// Package geocode resolves area names to map centroids through a
// Nominatim-compatible endpoint. Centroids seed the tile frontier and
// anchor stale-tile retries; the sweep degrades but still works without
// them, so lookups fail soft onto a configurable default point.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/domain"
)

type Config struct {
	URL        string
	UserAgent  string
	City       string
	Province   string
	Country    string
	MaxRetries int
	RetryDelay time.Duration
	Default    domain.Point
}

type Geocoder struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Geocoder {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Geocoder{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// nominatim returns coordinates as strings.
type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Centroid looks up the center point of a named area. When every attempt
// fails and a default point is configured, the default is returned
// instead of an error.
func (g *Geocoder) Centroid(ctx context.Context, area string) (domain.Point, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(g.cfg.RetryDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return domain.Point{}, ctx.Err()
			}
			t.Stop()
		}

		p, err := g.lookup(ctx, area)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return domain.Point{}, ctx.Err()
		}
		lastErr = err
	}

	if g.cfg.Default != (domain.Point{}) {
		g.logger.Warn("geocode failed, using default centroid",
			zap.String("area", area), zap.Error(lastErr))
		return g.cfg.Default, nil
	}
	return domain.Point{}, fmt.Errorf("geocode %q: %w: %w", area, domain.ErrGeocodeFailed, lastErr)
}

func (g *Geocoder) lookup(ctx context.Context, area string) (domain.Point, error) {
	u, err := url.Parse(g.cfg.URL)
	if err != nil {
		return domain.Point{}, fmt.Errorf("geocoder url: %w", err)
	}
	q := u.Query()
	q.Set("q", fmt.Sprintf("%s, %s, %s, %s", area, g.cfg.City, g.cfg.Province, g.cfg.Country))
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return domain.Point{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", g.cfg.UserAgent)

	resp, err := g.http.Do(req)
	if err != nil {
		return domain.Point{}, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Point{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(snippet))
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.Point{}, fmt.Errorf("decode: %w", err)
	}
	if len(places) == 0 {
		return domain.Point{}, fmt.Errorf("%q: %w", area, domain.ErrAreaNotFound)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("lon %q: %w", places[0].Lon, err)
	}
	return domain.Point{Lat: lat, Lon: lon}, nil
}
