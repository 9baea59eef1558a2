package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/sourcerer/config"
)

// Telemetry tracks query, source and completion-backend activity. It
// keeps in-process aggregates for the stats endpoint and mirrors them
// into a private prometheus registry served at /metrics. Each instance
// owns its registry, so parallel instances never collide on metric
// registration.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry

	queriesTotal   *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	sourceRequests *prometheus.CounterVec
	llmRequests    *prometheus.CounterVec
	chunksIndexed  *prometheus.CounterVec

	mu                 sync.RWMutex
	totalQueries       int64
	failedQueries      int64
	totalResults       int64
	totalQueryTime     time.Duration
	sourceSearches     map[string]int64
	sourceFailures     map[string]int64
	llmCalls           int64
	llmFailures        int64
	chunksIngested     map[string]int64
	lastQueryCompleted time.Time
}

// QueryEvent records one completed query.
type QueryEvent struct {
	Query        string
	SourcesUsed  []string
	TotalResults int
	Failed       bool
	Duration     time.Duration
}

// NewTelemetry creates a telemetry instance with its own registry.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config:         cfg,
		logger:         log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry:       prometheus.NewRegistry(),
		sourceSearches: make(map[string]int64),
		sourceFailures: make(map[string]int64),
		chunksIngested: make(map[string]int64),
	}

	t.queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcerer_queries_total",
		Help: "Processed queries by outcome.",
	}, []string{"outcome"})
	t.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sourcerer_query_duration_seconds",
		Help:    "End to end query processing time.",
		Buckets: prometheus.DefBuckets,
	})
	t.sourceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcerer_source_requests_total",
		Help: "Source searches by source type and outcome.",
	}, []string{"source", "outcome"})
	t.llmRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcerer_llm_requests_total",
		Help: "Completion backend calls by outcome.",
	}, []string{"outcome"})
	t.chunksIndexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcerer_chunks_indexed_total",
		Help: "Chunks added to the content index by source type.",
	}, []string{"source_type"})

	t.registry.MustRegister(t.queriesTotal, t.queryDuration, t.sourceRequests, t.llmRequests, t.chunksIndexed)
	return t
}

// Registry exposes the prometheus registry for the metrics handler.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// RecordQuery records a completed query event.
func (t *Telemetry) RecordQuery(event QueryEvent) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "success"
	if event.Failed {
		outcome = "failure"
	}
	t.queriesTotal.WithLabelValues(outcome).Inc()
	t.queryDuration.Observe(event.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalQueries++
	if event.Failed {
		t.failedQueries++
	}
	t.totalResults += int64(event.TotalResults)
	t.totalQueryTime += event.Duration
	t.lastQueryCompleted = time.Now()

	if t.config.PeriodicLogs {
		t.logger.Printf("query finished: sources=%d results=%d duration=%v",
			len(event.SourcesUsed), event.TotalResults, event.Duration)
	}
}

// RecordSourceSearch records one source search outcome.
func (t *Telemetry) RecordSourceSearch(source string, success bool, duration time.Duration) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	t.sourceRequests.WithLabelValues(source, outcome).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sourceSearches[source]++
	if !success {
		t.sourceFailures[source]++
	}
}

// RecordLLMRequest records one completion backend call.
func (t *Telemetry) RecordLLMRequest(success bool) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	t.llmRequests.WithLabelValues(outcome).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.llmCalls++
	if !success {
		t.llmFailures++
	}
}

// RecordIngestion records chunks added to the index for a source type.
func (t *Telemetry) RecordIngestion(sourceType string, count int) {
	if t == nil || !t.config.Enabled || count <= 0 {
		return
	}
	t.chunksIndexed.WithLabelValues(sourceType).Add(float64(count))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunksIngested[sourceType] += int64(count)
}

// Snapshot is a point-in-time view of the aggregates.
type Snapshot struct {
	TotalQueries       int64            `json:"total_queries"`
	FailedQueries      int64            `json:"failed_queries"`
	TotalResults       int64            `json:"total_results"`
	AverageQueryTime   time.Duration    `json:"average_query_time"`
	SourceSearches     map[string]int64 `json:"source_searches"`
	SourceFailures     map[string]int64 `json:"source_failures"`
	LLMCalls           int64            `json:"llm_calls"`
	LLMFailures        int64            `json:"llm_failures"`
	ChunksIngested     map[string]int64 `json:"chunks_ingested"`
	LastQueryCompleted time.Time        `json:"last_query_completed"`
}

// GetSnapshot returns a copy of the current aggregates.
func (t *Telemetry) GetSnapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		TotalQueries:       t.totalQueries,
		FailedQueries:      t.failedQueries,
		TotalResults:       t.totalResults,
		LLMCalls:           t.llmCalls,
		LLMFailures:        t.llmFailures,
		LastQueryCompleted: t.lastQueryCompleted,
		SourceSearches:     make(map[string]int64, len(t.sourceSearches)),
		SourceFailures:     make(map[string]int64, len(t.sourceFailures)),
		ChunksIngested:     make(map[string]int64, len(t.chunksIngested)),
	}
	if t.totalQueries > 0 {
		snap.AverageQueryTime = t.totalQueryTime / time.Duration(t.totalQueries)
	}
	for k, v := range t.sourceSearches {
		snap.SourceSearches[k] = v
	}
	for k, v := range t.sourceFailures {
		snap.SourceFailures[k] = v
	}
	for k, v := range t.chunksIngested {
		snap.ChunksIngested[k] = v
	}
	return snap
}
