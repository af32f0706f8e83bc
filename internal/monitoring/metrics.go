package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Detection outcomes used as the "outcome" label on DetectionsTotal.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
)

var (
	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "motiontrace_frames_processed_total",
		Help: "Total number of frames read by extraction runs",
	})

	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "motiontrace_detections_total",
		Help: "Per-frame localization outcomes after gating",
	}, []string{"outcome"})

	RecordsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "motiontrace_records_written_total",
		Help: "Total number of time-series rows written",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "motiontrace_runs_total",
		Help: "Finished extraction runs, by status",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "motiontrace_run_duration_seconds",
		Help:    "Wall time of a single video extraction run",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "motiontrace_active_runs",
		Help: "Number of extraction runs currently in progress",
	})
)

// NewMux serves /metrics and /healthz, and routes everything else to
// routes when it is non-nil.
func NewMux(routes http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if routes != nil {
		mux.Handle("/", routes)
	}
	return mux
}

// StartMetricsServer serves NewMux(routes) on addr until ctx is done.
func StartMetricsServer(ctx context.Context, addr string, routes http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		Logf("[Metrics] serving on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logf("[Metrics] server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv
}
