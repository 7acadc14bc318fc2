package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fcst_ingest"

// Metrics holds the Prometheus counters, histograms, and gauges for grid ingestion.
type Metrics struct {
	FilesProcessed  *prometheus.CounterVec // labels: outcome={ingested,skipped,failed}
	CellsProcessed  *prometheus.CounterVec // labels: outcome={succeeded,failed}
	PointsWritten   prometheus.Counter
	StationsCreated prometheus.Counter
	RunsCreated     prometheus.Counter
	IngestRunning   prometheus.Gauge

	GridIngestDuration prometheus.Histogram

	// Station cache lookups.
	StationCache *prometheus.CounterVec // labels: result={hit,miss}

	// Completion notifications.
	Notifications *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all ingestion metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesProcessed,
		m.CellsProcessed,
		m.PointsWritten,
		m.StationsCreated,
		m.RunsCreated,
		m.IngestRunning,
		m.GridIngestDuration,
		m.StationCache,
		m.Notifications,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Input files handled by outcome.",
		}, []string{"outcome"}),
		CellsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_processed_total",
			Help:      "Grid cells handled by outcome.",
		}, []string{"outcome"}),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_written_total",
			Help:      "Time series points upserted.",
		}),
		StationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_created_total",
			Help:      "Stations inserted into the registry.",
		}),
		RunsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_created_total",
			Help:      "Run ledger rows inserted.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_running",
			Help:      "1 while a batch is being ingested, 0 otherwise.",
		}),
		GridIngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_ingest_duration_seconds",
			Help:      "Duration of ingesting one grid into the store.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		StationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_cache_total",
			Help:      "Station cache lookups by result.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_notifications_total",
			Help:      "Completion events published by outcome.",
		}, []string{"outcome"}),
	}
}
