package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the live summary service
type Metrics struct {
	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    prometheus.Counter
	SessionDuration   prometheus.Histogram
	StartsDeclined    prometheus.Counter

	// Transcription metrics
	ChunksRead            prometheus.Counter
	SegmentsTranscribed   prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Summary tick metrics
	TicksExecuted prometheus.Counter
	TicksSkipped  prometheus.Counter
	TicksAborted  prometheus.Counter
	TicksNoop     prometheus.Counter
	TickDuration  prometheus.Histogram

	// Event bus metrics
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	Subscribers     prometheus.Gauge

	// Persistence metrics
	StoreWrites      prometheus.Counter
	StoreWriteErrors prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lss_active_sessions",
			Help: "Current number of active recording sessions",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_sessions_started_total",
			Help: "Total number of sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_sessions_completed_total",
			Help: "Total number of sessions that completed normally",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_sessions_failed_total",
			Help: "Total number of sessions that ended in failure",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lss_session_duration_seconds",
			Help:    "Duration of recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		StartsDeclined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_session_starts_declined_total",
			Help: "Total number of start requests declined as already running",
		}),

		// Transcription metrics
		ChunksRead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_chunks_read_total",
			Help: "Total number of content chunks pulled from sources",
		}),
		SegmentsTranscribed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_segments_transcribed_total",
			Help: "Total number of transcript segments appended",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_transcription_failures_total",
			Help: "Total number of per-chunk transcription failures",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lss_transcription_duration_seconds",
			Help:    "Duration of transcription backend calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		// Summary tick metrics
		TicksExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_ticks_executed_total",
			Help: "Total number of summary ticks that ran to commit",
		}),
		TicksSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_ticks_skipped_total",
			Help: "Total number of summary ticks skipped while one was in flight",
		}),
		TicksAborted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_ticks_aborted_total",
			Help: "Total number of summary ticks aborted by a failed service call",
		}),
		TicksNoop: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_ticks_noop_total",
			Help: "Total number of summary ticks with nothing to process",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lss_tick_duration_seconds",
			Help:    "Duration of summary ticks",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),

		// Event bus metrics
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_events_published_total",
			Help: "Total number of events published to session buses",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_events_dropped_total",
			Help: "Total number of events dropped by the drop-oldest overflow policy",
		}),
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lss_event_subscribers",
			Help: "Current number of event bus subscribers across sessions",
		}),

		// Persistence metrics
		StoreWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_store_writes_total",
			Help: "Total number of successful snapshot writes",
		}),
		StoreWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lss_store_write_errors_total",
			Help: "Total number of failed snapshot writes",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lss_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lss_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lss_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionStarted records a new active session
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionEnded records a finished session and its duration
func (m *Metrics) RecordSessionEnded(failed bool, durationSeconds float64) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if failed {
		m.SessionsFailed.Inc()
	} else {
		m.SessionsCompleted.Inc()
	}
}

// RecordTranscription records the outcome of one backend call
func (m *Metrics) RecordTranscription(success bool, durationSeconds float64, segments int) {
	m.TranscriptionDuration.Observe(durationSeconds)
	if success {
		m.SegmentsTranscribed.Add(float64(segments))
	} else {
		m.TranscriptionFailures.Inc()
	}
}

// RecordTick records a committed tick and its duration
func (m *Metrics) RecordTick(durationSeconds float64) {
	m.TicksExecuted.Inc()
	m.TickDuration.Observe(durationSeconds)
}

// RecordStoreWrite records the outcome of a snapshot write
func (m *Metrics) RecordStoreWrite(err error) {
	if err != nil {
		m.StoreWriteErrors.Inc()
		return
	}
	m.StoreWrites.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
