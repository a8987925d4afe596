// Package metrics records vulntracker run telemetry in a private Prometheus
// registry. A run is a short batch job, so instead of serving /metrics the
// registry is written once to a node-exporter textfile at exit.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rotation outcomes used as the result label.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Recorder holds the run metrics. It implements qualys.Observer.
type Recorder struct {
	registry *prometheus.Registry

	// Counters
	apiRequests *prometheus.CounterVec
	rotations   *prometheus.CounterVec

	// Gauges
	reportRows   prometheus.Gauge
	runDuration  prometheus.Gauge
	lastSuccess  prometheus.Gauge
	runSucceeded prometheus.Gauge

	// Histograms
	apiLatency *prometheus.HistogramVec
}

// New creates a Recorder with every collector registered.
func New() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulntracker_api_requests_total",
			Help: "Qualys API requests by action and HTTP status",
		},
		[]string{"action", "status"},
	)
	r.rotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulntracker_rotations_total",
			Help: "Overview sheet checkpoint rotations by outcome",
		},
		[]string{"sheet", "result"},
	)
	r.reportRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vulntracker_report_rows",
		Help: "Rows imported from the latest report",
	})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vulntracker_run_duration_seconds",
		Help: "Wall time of the latest run",
	})
	r.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vulntracker_last_success_timestamp_seconds",
		Help: "Unix time of the latest fully successful run",
	})
	r.runSucceeded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vulntracker_run_success",
		Help: "1 when the latest run finished without errors",
	})
	r.apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vulntracker_api_request_duration_seconds",
			Help:    "Qualys API response time distribution",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"action"},
	)

	collectors := []prometheus.Collector{
		r.apiRequests,
		r.rotations,
		r.reportRows,
		r.runDuration,
		r.lastSuccess,
		r.runSucceeded,
		r.apiLatency,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveAPICall counts one Qualys request. statusCode is 0 when no response
// was received.
func (r *Recorder) ObserveAPICall(action string, statusCode int, elapsed time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	r.apiRequests.WithLabelValues(action, status).Inc()
	r.apiLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveReport records the imported report size.
func (r *Recorder) ObserveReport(rows int) {
	r.reportRows.Set(float64(rows))
}

// ObserveRotation records one rotation outcome for sheet.
func (r *Recorder) ObserveRotation(sheet string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	r.rotations.WithLabelValues(sheet, result).Inc()
}

// ObserveRun records the run duration and, on success, the completion time.
// A failed run drops the last-success series rather than exporting zero.
func (r *Recorder) ObserveRun(elapsed time.Duration, finished time.Time, ok bool) {
	r.runDuration.Set(elapsed.Seconds())
	if ok {
		r.runSucceeded.Set(1)
		r.lastSuccess.Set(float64(finished.Unix()))
		return
	}
	r.runSucceeded.Set(0)
	r.registry.Unregister(r.lastSuccess)
}

// WriteTextfile writes the registry in text exposition format for the
// node-exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
