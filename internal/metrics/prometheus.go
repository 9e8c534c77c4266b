package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placecut_runs_total",
		Help: "Total number of pipeline runs, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "placecut_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placecut_frames_sampled_total",
		Help: "Total number of frames kept for OCR across all runs",
	})

	OCRFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placecut_ocr_failures_total",
		Help: "Total number of frames whose recognition failed and was skipped",
	})

	GeocodeLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placecut_geocode_lookups_total",
		Help: "Total number of candidate lookups, by result",
	}, []string{"result"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "placecut_active_runs",
		Help: "Number of pipeline runs currently in progress",
	})
)
