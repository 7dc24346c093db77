package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/usecase/enumerate"
)

type fakeProgress struct {
	areas []enumerate.AreaProgress
}

func (f *fakeProgress) Progress() []enumerate.AreaProgress { return f.areas }

type fakeSlices struct {
	done, partial int
}

func (f *fakeSlices) Slices() (int, int) { return f.done, f.partial }

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer() *Server {
	return New(0, prometheus.NewRegistry(), zap.NewNop())
}

func TestHealthz_OK(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want %q", resp.Status, "ok")
	}
	if resp.Version == "" {
		t.Error("expected version to be set")
	}
}

func TestHealthz_FailingPinger_503(t *testing.T) {
	s := newTestServer().WithPinger(&fakePinger{err: errors.New("connection refused")})

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status: got %q, want %q", resp.Status, "unhealthy")
	}
	if resp.Error == "" {
		t.Error("expected error detail in response")
	}
}

func TestHealthz_HealthyPinger_OK(t *testing.T) {
	s := newTestServer().WithPinger(&fakePinger{})

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestProgress_Empty(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/progress", http.NoBody)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("progress: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp progressResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Areas) != 0 {
		t.Errorf("areas: got %d, want 0", len(resp.Areas))
	}
}

func TestProgress_Snapshot(t *testing.T) {
	progress := &fakeProgress{
		areas: []enumerate.AreaProgress{
			{Area: "C-443", YearsDone: 3, YearsTotal: 10, Records: 412, Partials: 1},
			{Area: "C-475", YearsDone: 10, YearsTotal: 10, Records: 980},
		},
	}
	s := newTestServer().WithProgress(progress, &fakeSlices{done: 13, partial: 1})

	req := httptest.NewRequest("GET", "/progress", http.NoBody)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("progress: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content type: got %q", got)
	}

	var resp progressResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SlicesDone != 13 || resp.SlicesPartial != 1 {
		t.Errorf("slices: got done=%d partial=%d, want 13/1", resp.SlicesDone, resp.SlicesPartial)
	}
	if len(resp.Areas) != 2 {
		t.Fatalf("areas: got %d, want 2", len(resp.Areas))
	}
	if resp.Areas[0].Area != "C-443" || resp.Areas[0].Records != 412 {
		t.Errorf("unexpected first area: %+v", resp.Areas[0])
	}
}

func TestMetrics_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "mlxsweep_test_total"})
	reg.MustRegister(c)
	c.Inc()

	s := New(0, reg, zap.NewNop())

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: got %d, want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "mlxsweep_test_total 1") {
		t.Errorf("expected counter in metrics output, got:\n%s", body)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on response")
	}
}
