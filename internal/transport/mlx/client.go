// Package mlx talks to the MLX map-search endpoint: a form-POST API that
// answers at most a page of listings per query, plus aggregation tiles
// pointing at where the rest of the results live.
package mlx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/domain"
	"github.com/yycdata/mlxsweep/internal/throttle"
)

const (
	listingTypeSold = "AUTO_SOLD"
	soldMonthRange  = "24"

	maxErrorBody = 1024
)

// CityBounds is the map viewport sent when no tile narrows the query.
type CityBounds struct {
	SWLat float64
	SWLng float64
	NELat float64
	NELng float64
}

// Config holds the endpoint surface. Zero retry/timeout values fall back
// to conservative defaults.
type Config struct {
	HomeURL      string
	SearchURL    string
	TypeaheadURL string
	Referer      string
	UserAgent    string
	CookieFile   string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration

	PxWidth     int
	PxHeight    int
	MinTileSize int
	MaxTileSize int

	Bounds CityBounds
}

// Client is the MLX endpoint client. It satisfies the Searcher contract of
// the partition planner.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *throttle.Limiter
	cookies *cookieStore
	logger  *zap.Logger
}

func NewClient(cfg Config, limiter *throttle.Limiter, logger *zap.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Jar: jar},
		limiter: limiter,
		cookies: newCookieStore(cfg.CookieFile),
		logger:  logger,
	}, nil
}

// Bootstrap establishes a session: persisted cookies are reused while
// fresh, otherwise the home page is fetched to obtain a new set.
func (c *Client) Bootstrap(ctx context.Context) error {
	if saved, ok := c.cookies.Load(); ok {
		c.setJarCookies(saved)
		c.logger.Info("reusing persisted session", zap.Int("cookies", len(saved)))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HomeURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("home request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch home page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch home page: HTTP %d", resp.StatusCode)
	}

	fresh := map[string]string{}
	for _, ck := range resp.Cookies() {
		fresh[ck.Name] = ck.Value
	}
	if err := c.cookies.Save(fresh); err != nil {
		c.logger.Warn("session not persisted", zap.Error(err))
	}
	c.logger.Info("session established", zap.Int("cookies", len(fresh)))
	return nil
}

func (c *Client) setJarCookies(saved map[string]string) {
	u, err := url.Parse(c.cfg.HomeURL)
	if err != nil {
		return
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for name, value := range saved {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	c.http.Jar.SetCookies(u, cookies)
}

// Search queries one window, optionally narrowed to a tile boundary. A nil
// box queries the whole city viewport.
func (c *Client) Search(
	ctx context.Context, w domain.Window, box *domain.BoundingBox,
) (domain.SearchResult, error) {
	form := c.searchForm(w, box)

	body, err := c.postForm(ctx, c.cfg.SearchURL, form)
	if err != nil {
		return domain.SearchResult{}, err
	}
	res, err := parseSearch(body)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("parse search response: %w", err)
	}
	return res, nil
}

func (c *Client) searchForm(w domain.Window, box *domain.BoundingBox) url.Values {
	v := url.Values{}
	v.Set("__SOLD__onoff", "only")
	v.Set("__SOLD__month_range", soldMonthRange)
	v.Set("_priceReduction", "on")
	v.Set("forMap", "true")
	v.Set("listingType", listingTypeSold)
	v.Set("format", "tiles")
	v.Set("pxWidth", strconv.Itoa(c.cfg.PxWidth))
	v.Set("pxHeight", strconv.Itoa(c.cfg.PxHeight))
	v.Set("minTileSize", strconv.Itoa(c.cfg.MinTileSize))
	v.Set("maxTileSize", strconv.Itoa(c.cfg.MaxTileSize))

	v.Set("YEAR_BUILT", fmt.Sprintf("%d-%d", w.Year(), w.Year()))
	v.Set("PROPERTY_TYPE", "RESI|DWELLING_TYPE@"+w.Dwelling())
	v.Set("DWELLING_TYPE", w.Dwelling())
	v.Set("omni", omni(w))

	if w.PriceFrom() > 0 && w.PriceTo() > 0 {
		v.Set("price-from", strconv.Itoa(w.PriceFrom()))
		v.Set("price-to", strconv.Itoa(w.PriceTo()))
	}

	if box != nil {
		v.Set("sw_lat", coord(box.SWLat))
		v.Set("sw_lng", coord(box.SWLng))
		v.Set("ne_lat", coord(box.NELat))
		v.Set("ne_lng", coord(box.NELng))
		v.Set("center_lat", coord(box.CenterLat))
		v.Set("center_lng", coord(box.CenterLng))
	} else {
		v.Set("sw_lat", coord(c.cfg.Bounds.SWLat))
		v.Set("sw_lng", coord(c.cfg.Bounds.SWLng))
		v.Set("ne_lat", coord(c.cfg.Bounds.NELat))
		v.Set("ne_lng", coord(c.cfg.Bounds.NELng))
	}
	return v
}

// omni renders the location filter the endpoint's own frontend sends.
func omni(w domain.Window) string {
	switch w.AreaKind() {
	case domain.AreaCommunity:
		return fmt.Sprintf("community:%s[%s]", w.AreaCode(), w.AreaName())
	default:
		return fmt.Sprintf("list_subarea:%s[%s]", w.AreaCode(), w.AreaName())
	}
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// postForm sends the request with browser-equivalent headers and retries
// transient failures with a fixed delay.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer c.limiter.Release()
	}

	encoded := form.Encode()
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("search retry",
				zap.Int("attempt", attempt+1), zap.Error(lastErr))
			if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		c.setHeaders(req)

		body, err := c.do(req)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, domain.ErrSessionExpired)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("content-type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("x-mrp-auto-sold", "true")
	req.Header.Set("x-mrp-cache", "no")
	req.Header.Set("x-mrp-tmpl", "v2")
	req.Header.Set("x-requested-with", "XMLHttpRequest")
	req.Header.Set("Referer", c.cfg.Referer)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
