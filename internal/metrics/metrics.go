// Package metrics exposes the live zone state as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	FramesProcessed atomic.Uint64
	FramesSkipped   atomic.Uint64
	FramesRejected  atomic.Uint64
	SessionsStarted atomic.Uint64

	zoneCount   *prometheus.GaugeVec
	zoneDensity *prometheus.GaugeVec
	zoneStatus  *prometheus.GaugeVec
	zoneTimer   *prometheus.GaugeVec
	globalAlert prometheus.Gauge
	people      prometheus.Gauge
	latency     prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		zoneCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdeval_zone_people",
			Help: "Persons assigned to the zone in the last processed frame",
		}, []string{"zone"}),
		zoneDensity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdeval_zone_density",
			Help: "Zone density in persons per square meter",
		}, []string{"zone"}),
		zoneStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdeval_zone_status",
			Help: "Zone status level (0 SAFE, 1 MODERATE, 2 WARNING, 3 EMERGENCY)",
		}, []string{"zone"}),
		zoneTimer: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdeval_zone_emergency_seconds",
			Help: "Seconds the zone has continuously been in EMERGENCY",
		}, []string{"zone"}),
		globalAlert: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdeval_global_alert_level",
			Help: "Most severe zone status level",
		}),
		people: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdeval_people_total",
			Help: "Persons assigned to any zone in the last processed frame",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowdeval_frame_processing_seconds",
			Help:    "Time spent evaluating one frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}

	m.registry.MustRegister(m.zoneCount, m.zoneDensity, m.zoneStatus, m.zoneTimer, m.globalAlert, m.people, m.latency)
	m.registerCounters()

	return m
}

func (m *Metrics) registerCounters() {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdeval_frames_processed_total",
			Help: "Total frames evaluated",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdeval_frames_skipped_total",
			Help: "Total frames skipped by the frame stride",
		},
		func() float64 { return float64(m.FramesSkipped.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdeval_frames_rejected_total",
			Help: "Total frames rejected as malformed",
		},
		func() float64 { return float64(m.FramesRejected.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdeval_sessions_started_total",
			Help: "Total monitoring sessions started",
		},
		func() float64 { return float64(m.SessionsStarted.Load()) },
	))
}

// Observe records a frame result and how long it took to compute.
func (m *Metrics) Observe(r *core.FrameResult, took time.Duration) {
	m.FramesProcessed.Add(1)
	m.latency.Observe(took.Seconds())

	for _, z := range r.Zones {
		m.zoneCount.WithLabelValues(z.ZoneID).Set(float64(z.Count))
		m.zoneDensity.WithLabelValues(z.ZoneID).Set(z.Density)
		m.zoneStatus.WithLabelValues(z.ZoneID).Set(float64(z.Status))
		elapsed := 0.0
		if z.Timer != nil {
			elapsed = z.Timer.Elapsed.Seconds()
		}
		m.zoneTimer.WithLabelValues(z.ZoneID).Set(elapsed)
	}
	m.globalAlert.Set(float64(r.GlobalAlert))
	m.people.Set(float64(r.TotalPeople))
}

// ResetZones drops per-zone series, used when a session ends.
func (m *Metrics) ResetZones() {
	m.zoneCount.Reset()
	m.zoneDensity.Reset()
	m.zoneStatus.Reset()
	m.zoneTimer.Reset()
	m.globalAlert.Set(0)
	m.people.Set(0)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer builds a metrics HTTP server on addr.
func (m *Metrics) NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// Start listens in the background. Listen errors are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
