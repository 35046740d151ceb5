package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsEndpoint = "0.0.0.0:9090"
)

var (
	FetchPagesCounter   *prometheus.CounterVec
	FetchErrorsCounter  *prometheus.CounterVec
	FetchRecordsCounter *prometheus.CounterVec
	FetchRunTimeSummary *prometheus.SummaryVec

	WarningsCounter      *prometheus.CounterVec
	ServersCounter       *prometheus.CounterVec
	SkippedDeviceCounter *prometheus.CounterVec
)

func init() {
	FetchPagesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regiongen_fetch_pages_total",
			Help: "A counter metric to measure the total count of pages fetched from upstream inventory APIs",
		},
		[]string{"source"},
	)

	FetchErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regiongen_fetch_errors_total",
			Help: "A counter metric to measure the total count of failed upstream inventory API requests",
		},
		[]string{"source", "kind"},
	)

	FetchRecordsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regiongen_fetch_records_total",
			Help: "A counter metric to measure the total count of records fetched from upstream inventory APIs",
		},
		[]string{"source", "zone"},
	)

	FetchRunTimeSummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "regiongen_fetch_duration_seconds",
			Help: "A summary metric to measure the time spent fetching a zone inventory from an upstream API",
		},
		[]string{"source", "zone"},
	)

	WarningsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regiongen_reconcile_warnings_total",
			Help: "A counter metric to measure the total count of reconciliation warnings by category",
		},
		[]string{"category"},
	)

	ServersCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regiongen_reconcile_servers_total",
			Help: "A counter metric to measure the total count of servers accepted into a descriptor",
		},
		[]string{"zone", "role"},
	)

	SkippedDeviceCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regiongen_reconcile_skipped_devices_total",
			Help: "A counter metric to measure the total count of devices left out of a descriptor",
		},
		[]string{"zone", "reason"},
	)
}

// ListenAndServe exposes prometheus metrics as /metrics
func ListenAndServe() {
	go func() {
		http.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              MetricsEndpoint,
			ReadHeaderTimeout: 2 * time.Second, // nolint:gomnd // time duration value is clear as is.
		}

		if err := server.ListenAndServe(); err != nil {
			log.Println(err)
		}
	}()
}
