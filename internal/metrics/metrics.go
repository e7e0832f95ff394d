package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
	"github.com/zgpcy/omnicost/internal/version"
)

// Recorder collects metrics for a single omnicost run and implements retry.Observer
type Recorder struct {
	provider provider.ProviderType
	registry *prometheus.Registry

	attemptsTotal *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	buildInfo     *prometheus.GaugeVec

	costMetric          *prometheus.Desc
	fetchDurationMetric *prometheus.Desc
	recordCountMetric   *prometheus.Desc

	mu            sync.RWMutex
	records       []provider.CostRecord
	fetchDuration time.Duration
	fetched       bool
}

// Verify that Recorder implements the executor and Prometheus interfaces
var (
	_ retry.Observer       = (*Recorder)(nil)
	_ prometheus.Collector = (*Recorder)(nil)
)

// NewRecorder creates a Recorder with its own registry
func NewRecorder(p provider.ProviderType) *Recorder {
	r := &Recorder{
		provider: p,
		registry: prometheus.NewRegistry(),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnicost_api_attempts_total",
				Help: "Total number of vendor API call attempts",
			},
			[]string{"provider", "operation"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnicost_api_retries_total",
				Help: "Total number of retried vendor API calls by failure class",
			},
			[]string{"provider", "operation", "class"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnicost_fetch_errors_total",
				Help: "Total number of failed cost fetches",
			},
			[]string{"provider"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "omnicost_build_info",
				Help: "Build version information",
			},
			[]string{"version", "git_commit", "build_date", "go_version"},
		),
		costMetric: prometheus.NewDesc(
			"omnicost_cost",
			"Cost (or raw usage for Datadog) aggregated by service, date and currency",
			[]string{"provider", "service", "date", "currency"},
			nil,
		),
		fetchDurationMetric: prometheus.NewDesc(
			"omnicost_fetch_duration_seconds",
			"Duration of the cost fetch in seconds, retries included",
			[]string{"provider"},
			nil,
		),
		recordCountMetric: prometheus.NewDesc(
			"omnicost_records",
			"Number of normalized cost records returned by the fetch",
			[]string{"provider"},
			nil,
		),
	}

	versionInfo := version.Info()
	r.buildInfo.With(prometheus.Labels{
		"version":    versionInfo["version"],
		"git_commit": versionInfo["git_commit"],
		"build_date": versionInfo["build_date"],
		"go_version": versionInfo["go_version"],
	}).Set(1)

	r.registry.MustRegister(r)
	return r
}

// ObserveAttempt implements retry.Observer
func (r *Recorder) ObserveAttempt(operation string) {
	r.attemptsTotal.WithLabelValues(string(r.provider), operation).Inc()
}

// ObserveRetry implements retry.Observer
func (r *Recorder) ObserveRetry(operation string, class retry.Class) {
	r.retriesTotal.WithLabelValues(string(r.provider), operation, class.String()).Inc()
}

// ObserveFetch records the outcome of FetchCosts
func (r *Recorder) ObserveFetch(records []provider.CostRecord, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fetched = true
	r.fetchDuration = duration
	if err != nil {
		r.fetchErrors.WithLabelValues(string(r.provider)).Inc()
		r.records = nil
		return
	}
	r.records = records
}

// Describe implements prometheus.Collector
func (r *Recorder) Describe(ch chan<- *prometheus.Desc) {
	r.attemptsTotal.Describe(ch)
	r.retriesTotal.Describe(ch)
	r.fetchErrors.Describe(ch)
	r.buildInfo.Describe(ch)
	ch <- r.costMetric
	ch <- r.fetchDurationMetric
	ch <- r.recordCountMetric
}

// Collect implements prometheus.Collector
func (r *Recorder) Collect(ch chan<- prometheus.Metric) {
	r.attemptsTotal.Collect(ch)
	r.retriesTotal.Collect(ch)
	r.fetchErrors.Collect(ch)
	r.buildInfo.Collect(ch)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.fetched {
		return
	}

	providerName := string(r.provider)

	type serviceKey struct {
		Service  string
		Date     string
		Currency string
	}
	serviceCosts := make(map[serviceKey]float64)
	for _, record := range r.records {
		serviceCosts[serviceKey{record.Service, record.Date, record.Currency}] += record.Amount
	}

	for key, cost := range serviceCosts {
		ch <- prometheus.MustNewConstMetric(
			r.costMetric,
			prometheus.GaugeValue,
			cost,
			providerName,
			key.Service,
			key.Date,
			key.Currency,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		r.fetchDurationMetric,
		prometheus.GaugeValue,
		r.fetchDuration.Seconds(),
		providerName,
	)

	ch <- prometheus.MustNewConstMetric(
		r.recordCountMetric,
		prometheus.GaugeValue,
		float64(len(r.records)),
		providerName,
	)
}

// Gatherer exposes the run registry
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in the text exposition format, suitable for
// the node exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
