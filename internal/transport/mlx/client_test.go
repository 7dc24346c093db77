package mlx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/domain"
)

func testWindow(t *testing.T, kind domain.AreaKind, priceFrom, priceTo int) domain.Window {
	t.Helper()
	w, err := domain.NewWindow("C-443", "Arbour Lake", kind, 1998, priceFrom, priceTo, "DET")
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	return w
}

func testClient(t *testing.T, searchURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		SearchURL:   searchURL,
		Referer:     "https://example.com/recip.html",
		UserAgent:   "test-agent",
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
		PxWidth:     1878,
		PxHeight:    771,
		MinTileSize: 50,
		MaxTileSize: 150,
		Bounds:      CityBounds{SWLat: 50.8, SWLng: -114.7, NELat: 51.2, NELng: -113.2},
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSearch_FormSurface(t *testing.T) {
	var form url.Values
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		form = r.PostForm
		header = r.Header.Clone()
		_, _ = w.Write([]byte(`{"totalFound":0}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.Search(context.Background(), testWindow(t, domain.AreaSubarea, 600000, 620000), nil); err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := map[string]string{
		"__SOLD__onoff":       "only",
		"__SOLD__month_range": "24",
		"listingType":         "AUTO_SOLD",
		"format":              "tiles",
		"forMap":              "true",
		"YEAR_BUILT":          "1998-1998",
		"PROPERTY_TYPE":       "RESI|DWELLING_TYPE@DET",
		"DWELLING_TYPE":       "DET",
		"omni":                "list_subarea:C-443[Arbour Lake]",
		"price-from":          "600000",
		"price-to":            "620000",
		"pxWidth":             "1878",
		"pxHeight":            "771",
		"minTileSize":         "50",
		"maxTileSize":         "150",
		"sw_lat":              "50.8",
		"ne_lng":              "-113.2",
	}
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("form[%s] = %q, want %q", k, got, v)
		}
	}
	if form.Has("center_lat") {
		t.Error("viewport query must not carry a tile center")
	}
	if got := header.Get("x-mrp-tmpl"); got != "v2" {
		t.Errorf("x-mrp-tmpl = %q, want v2", got)
	}
	if got := header.Get("User-Agent"); got != "test-agent" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestSearch_TileBoundary(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_, _ = w.Write([]byte(`{"totalFound":0}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	box := domain.NewBoundingBox(51.0, -114.0, 0.02)
	if _, err := c.Search(context.Background(), testWindow(t, domain.AreaCommunity, 0, 0), &box); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got := form.Get("omni"); got != "community:C-443[Arbour Lake]" {
		t.Errorf("omni = %q", got)
	}
	if got := form.Get("center_lat"); got != "51" {
		t.Errorf("center_lat = %q, want 51", got)
	}
	if got := form.Get("sw_lat"); got != "50.98" {
		t.Errorf("sw_lat = %q, want 50.98", got)
	}
	if form.Has("price-from") {
		t.Error("unbounded window must not send a price band")
	}
}

func TestSearch_ListingsFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalFound": 2,
			"listings": map[string]any{
				"101": map[string]any{"LIST_ID": 101, "STREET_NAME": "Arbour Crest"},
				"102": map[string]any{"LIST_ID": 102, "STREET_NAME": "Tuscany Hills"},
			},
			"tiles": []map[string]any{
				{"lat": 51.1, "lon": -114.2, "count": 7, "id": 42, "pixelSize": 76},
			},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	res, err := c.Search(context.Background(), testWindow(t, domain.AreaSubarea, 0, 0), nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.TotalFound != 2 || len(res.Records) != 2 {
		t.Errorf("total=%d records=%d, want 2 and 2", res.TotalFound, len(res.Records))
	}
	if len(res.Tiles) != 1 || res.Tiles[0].ID != 42 || res.Tiles[0].Count != 7 {
		t.Errorf("tiles = %+v", res.Tiles)
	}
	ids := map[string]bool{}
	for _, r := range res.Records {
		ids[r.ID()] = true
	}
	if !ids["101"] || !ids["102"] {
		t.Errorf("record ids = %v", ids)
	}
}

func TestSearch_ResultsFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"totalFound": 1,
			"results": [{"LIST_ID": "17186820219", "PRICE_RAW": 699900}]
		}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	res, err := c.Search(context.Background(), testWindow(t, domain.AreaSubarea, 0, 0), nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ID() != "17186820219" {
		t.Errorf("records = %v", res.Records)
	}
}

func TestSearch_RetriesTransientFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"totalFound":0}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.Search(context.Background(), testWindow(t, domain.AreaSubarea, 0, 0), nil); err != nil {
		t.Fatalf("Search after retry: %v", err)
	}
	if hits != 2 {
		t.Errorf("server hit %d times, want 2", hits)
	}
}

func TestSearch_SessionExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Search(context.Background(), testWindow(t, domain.AreaSubarea, 0, 0), nil)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestCookieStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	s := newCookieStore(path)

	if _, ok := s.Load(); ok {
		t.Error("empty store reported cookies")
	}
	if err := s.Save(map[string]string{"JSESSIONID": "abc123"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok := s.Load()
	if !ok || got["JSESSIONID"] != "abc123" {
		t.Errorf("Load = %v, %v", got, ok)
	}
}

func TestCookieStore_Expiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	stale, _ := json.Marshal(cookieFile{
		FetchedAt: time.Now().Add(-25 * time.Hour),
		Cookies:   map[string]string{"JSESSIONID": "old"},
	})
	if err := os.WriteFile(path, stale, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := newCookieStore(path).Load(); ok {
		t.Error("day-old session must not be reused")
	}
}

func TestBootstrap_PersistsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "fresh"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cookies.json")
	c, err := NewClient(Config{
		HomeURL:    srv.URL,
		CookieFile: path,
		UserAgent:  "test-agent",
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	got, ok := newCookieStore(path).Load()
	if !ok || got["JSESSIONID"] != "fresh" {
		t.Errorf("persisted cookies = %v, %v", got, ok)
	}
}
