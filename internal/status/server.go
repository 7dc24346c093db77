// Package status serves the operational HTTP surface of a sweep: liveness,
// Prometheus metrics, and a JSON snapshot of per-area progress. It is a
// read-only sidecar to the crawl and never touches the remote endpoint.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/metrics"
	"github.com/yycdata/mlxsweep/internal/usecase/enumerate"
	"github.com/yycdata/mlxsweep/internal/version"
)

// ProgressSource yields a point-in-time view of the sweep. *enumerate.Engine
// satisfies it.
type ProgressSource interface {
	Progress() []enumerate.AreaProgress
}

// SliceSource reports checkpoint totals. *enumerate.Checkpoint satisfies it.
type SliceSource interface {
	Slices() (done, partial int)
}

// Pinger is an optional dependency probe consulted by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes /healthz, /metrics and /progress on a dedicated port.
type Server struct {
	srv      *http.Server
	logger   *zap.Logger
	registry *prometheus.Registry
	progress ProgressSource
	slices   SliceSource
	pinger   Pinger
}

// New builds a status server. progress and slices may be nil, in which case
// /progress serves an empty snapshot. pinger may be nil to skip dependency
// probing on /healthz.
func New(port int, registry *prometheus.Registry, logger *zap.Logger) *Server {
	s := &Server{
		logger:   logger,
		registry: registry,
	}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// WithProgress wires the sweep snapshot sources into /progress.
func (s *Server) WithProgress(progress ProgressSource, slices SliceSource) *Server {
	s.progress = progress
	s.slices = slices
	return s
}

// WithPinger adds a dependency probe to /healthz. A failing probe turns the
// endpoint into a 503.
func (s *Server) WithPinger(p Pinger) *Server {
	s.pinger = p
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.NewHTTP(s.registry).Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Get("/progress", s.handleProgress)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// Start runs the listener until Shutdown is called. It returns only on a
// listener error; callers run it in a goroutine.
func (s *Server) Start() error {
	s.logger.Info("Starting status server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.Commit,
	}

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("Health probe failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type progressResponse struct {
	SlicesDone    int                      `json:"slices_done"`
	SlicesPartial int                      `json:"slices_partial"`
	Areas         []enumerate.AreaProgress `json:"areas"`
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	resp := progressResponse{Areas: []enumerate.AreaProgress{}}
	if s.slices != nil {
		resp.SlicesDone, resp.SlicesPartial = s.slices.Slices()
	}
	if s.progress != nil {
		resp.Areas = s.progress.Progress()
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain
// text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits a canonical log line per request and propagates
// X-Request-ID.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http_request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
			)
		})
	}
}
