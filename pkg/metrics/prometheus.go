// Package metrics provides Prometheus metrics for the matchd recommendation service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the matchd service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Recommendation pipeline
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheEntries       prometheus.Gauge
	cacheEvictions     *prometheus.CounterVec
	generations        *prometheus.CounterVec
	generationLatency  *prometheus.HistogramVec
	candidatePoolSize  *prometheus.HistogramVec
	compatibilityScore *prometheus.HistogramVec
	actionsRecorded    *prometheus.CounterVec

	// Batch scheduler
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobLastRun    *prometheus.GaugeVec
	jobRunning    *prometheus.GaugeVec
	batchTasks    *prometheus.CounterVec
	activeUsers   prometheus.Gauge
	activeProfile prometheus.Gauge

	// Collaborators
	upstreamErrors *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var (
	mu             sync.RWMutex
	globalManager  *Manager
	customRegistry = prometheus.NewRegistry()
)

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "matchd",
		subsystem:      "recommendation",
		latencyBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		constLabels:    map[string]string{},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// Use replaces the manager behind the package-level recorders.
func Use(m *Manager) error {
	if m == nil {
		return ErrMetricsNotInitialized
	}
	mu.Lock()
	globalManager = m
	mu.Unlock()
	return nil
}

func current() *Manager {
	mu.RLock()
	defer mu.RUnlock()
	return globalManager
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		}, labels)
	}
	gaugeVec := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		})
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
		}, labels)
	}

	m.cacheHits = counter("cache_hits_total", "Recommendation cache hits", "scene")
	m.cacheMisses = counter("cache_misses_total", "Recommendation cache misses", "scene")
	m.cacheEntries = gauge("cache_entries", "Recommendation lists currently cached")
	m.cacheEvictions = counter("cache_evictions_total", "Cache records removed", "reason")
	m.generations = counter("generations_total", "Recommendation list generations by outcome", "scene", "outcome")
	m.generationLatency = histogram("generation_latency_ms", "Time to select, score and rank one list", m.latencyBuckets, "scene")
	m.candidatePoolSize = histogram("candidate_pool_size", "Candidates considered per generation",
		[]float64{0, 1, 5, 10, 25, 50, 100, 250}, "scene")
	m.compatibilityScore = histogram("compatibility_score", "Compatibility score of returned entries",
		prometheus.LinearBuckets(0, 10, 11), "scene")
	m.actionsRecorded = counter("actions_recorded_total", "User actions written to the action log", "scene", "action")

	m.jobRuns = counter("job_runs_total", "Scheduler job runs by result", "job", "result")
	m.jobDuration = histogram("job_duration_ms", "Scheduler job duration", prometheus.ExponentialBuckets(1, 4, 10), "job")
	m.jobLastRun = gaugeVec("job_last_run_timestamp_seconds", "Unix time of the last completed run", "job")
	m.jobRunning = gaugeVec("job_running", "1 while the job is running", "job")
	m.batchTasks = counter("batch_tasks_total", "Per-user regeneration tasks by outcome", "scene", "outcome")
	m.activeUsers = gauge("active_users", "Users with at least one active profile")
	m.activeProfile = gauge("active_profiles", "Active, non-deleted profiles")

	m.upstreamErrors = counter("upstream_errors_total", "Failed collaborator calls", "collaborator", "operation")
	m.breakerState = gaugeVec("breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)", "breaker")

	m.httpRequests = counter("http_requests_total", "HTTP requests by route, method and status", "route", "method", "status")
	m.httpRequestDuration = histogram("http_request_duration_ms", "HTTP request latency", m.latencyBuckets, "route", "method", "status")

	m.systemMemoryUsage = gauge("system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
}

// RecordCacheHit counts a cache hit for scene.
func RecordCacheHit(scene string) { current().cacheHits.WithLabelValues(scene).Inc() }

// RecordCacheMiss counts a cache miss for scene.
func RecordCacheMiss(scene string) { current().cacheMisses.WithLabelValues(scene).Inc() }

// UpdateCacheEntries sets the number of cached lists.
func UpdateCacheEntries(n int) { current().cacheEntries.Set(float64(n)) }

// RecordCacheEvictions adds n evictions for reason ("expired", "invalidated").
func RecordCacheEvictions(reason string, n int) {
	if n <= 0 {
		return
	}
	current().cacheEvictions.WithLabelValues(reason).Add(float64(n))
}

// RecordGeneration counts a generation outcome ("ok", "not_found", "upstream", "cancelled", ...).
func RecordGeneration(scene, outcome string) {
	current().generations.WithLabelValues(scene, outcome).Inc()
}

// RecordGenerationLatency observes generation latency in milliseconds.
func RecordGenerationLatency(scene string, latencyMs float64) {
	current().generationLatency.WithLabelValues(scene).Observe(latencyMs)
}

// RecordCandidatePoolSize observes the selected pool size.
func RecordCandidatePoolSize(scene string, n int) {
	current().candidatePoolSize.WithLabelValues(scene).Observe(float64(n))
}

// ObserveCompatibilityScore observes one returned score.
func ObserveCompatibilityScore(scene string, score float64) {
	current().compatibilityScore.WithLabelValues(scene).Observe(score)
}

// RecordAction counts an action written to the action log.
func RecordAction(scene, action string) {
	current().actionsRecorded.WithLabelValues(scene, action).Inc()
}

// RecordJobRun records a completed job run.
func RecordJobRun(job string, success bool, durationMs float64, finishedUnix int64) {
	m := current()
	result := "success"
	if !success {
		result = "failure"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(durationMs)
	m.jobLastRun.WithLabelValues(job).Set(float64(finishedUnix))
}

// UpdateJobRunning flags whether job is currently running.
func UpdateJobRunning(job string, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	current().jobRunning.WithLabelValues(job).Set(v)
}

// RecordBatchTask counts one regeneration task outcome.
func RecordBatchTask(scene string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	current().batchTasks.WithLabelValues(scene, outcome).Inc()
}

// UpdateActiveUsers sets the active user gauge.
func UpdateActiveUsers(n int) { current().activeUsers.Set(float64(n)) }

// UpdateActiveProfiles sets the active profile gauge.
func UpdateActiveProfiles(n int) { current().activeProfile.Set(float64(n)) }

// RecordUpstreamError counts a failed collaborator call.
func RecordUpstreamError(collaborator, operation string) {
	current().upstreamErrors.WithLabelValues(collaborator, operation).Inc()
}

// UpdateBreakerState publishes a breaker state (0 closed, 1 half-open, 2 open).
func UpdateBreakerState(name string, state int) {
	current().breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordHTTPRequest records one HTTP request and its latency in milliseconds.
func RecordHTTPRequest(route, method, statusCode string, durationMs float64) {
	m := current()
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { current().systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { current().systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry backing the default manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
