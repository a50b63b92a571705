package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"markad/internal/logging"
)

// Recorder owns a registry with the markad collectors.
type Recorder struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	markMutations *prometheus.CounterVec
	passDuration  *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	framesRead    prometheus.Counter
	finalMarks    prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markad_detector_events_total",
			Help: "Detector transitions, by mark class and kind",
		}, []string{"class", "kind"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markad_boundary_decisions_total",
			Help: "Accepted start and stop boundaries, by boundary and mark class",
		}, []string{"boundary", "class"}),
		markMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markad_mark_mutations_total",
			Help: "Marks added to or removed from the primary sequence",
		}, []string{"op"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "markad_pass_duration_seconds",
			Help:    "Duration of each refinement pass",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}, []string{"pass"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markad_runs_total",
			Help: "Completed analysis runs, by status",
		}, []string{"status"}),
		framesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "markad_frames_read_total",
			Help: "Video frames decoded during detection",
		}),
		finalMarks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "markad_final_marks",
			Help: "Number of marks in the last saved result",
		}),
	}
	r.registry.MustRegister(r.events, r.decisions, r.markMutations, r.passDuration, r.runs, r.framesRead, r.finalMarks)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Event counts one detector transition.
func (r *Recorder) Event(class, kind string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(class, kind).Inc()
}

// Decision counts an accepted boundary.
func (r *Recorder) Decision(boundary, class string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(boundary, class).Inc()
}

// MarksChanged matches the marks.OnChange callback signature.
func (r *Recorder) MarksChanged(added, removed int) {
	if r == nil {
		return
	}
	if added > 0 {
		r.markMutations.WithLabelValues("add").Add(float64(added))
	}
	if removed > 0 {
		r.markMutations.WithLabelValues("remove").Add(float64(removed))
	}
}

// Pass observes the duration of a pass.
func (r *Recorder) Pass(name string, d time.Duration) {
	if r == nil {
		return
	}
	r.passDuration.WithLabelValues(name).Observe(d.Seconds())
}

// Frame counts one frame read.
func (r *Recorder) Frame() {
	if r == nil {
		return
	}
	r.framesRead.Inc()
}

// Run records a finished run and its mark count.
func (r *Recorder) Run(status string, marks int) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
	r.finalMarks.Set(float64(marks))
}

// Serve exposes /metrics and /healthz on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) *http.Server {
	logger = logging.NewComponentLogger(logger, "metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server starting", logging.String("listen", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", logging.Error(err))
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
