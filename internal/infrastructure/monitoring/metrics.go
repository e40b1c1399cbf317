package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
//
// All Record/Set/Inc methods are safe on a nil *Metrics so components can be
// built without instrumentation in tests.
type Metrics struct {
	// Worker loop metrics
	ViewsRegistered    prometheus.Gauge
	LoopIterations     prometheus.Counter
	IterationDuration  prometheus.Histogram
	ViewsCreated       prometheus.Counter
	ViewsDestroyed     prometheus.Counter
	ConstructFailures  prometheus.Counter
	ViewOpFailures     *prometheus.CounterVec
	ScriptEvaluations  *prometheus.CounterVec
	FramesCaptured     prometheus.Counter
	EventsEmitted      prometheus.Counter
	PageLoads          *prometheus.CounterVec

	// Host frame loop metrics
	FramesUploaded prometheus.Counter
	HostTicks      prometheus.Counter
	HostTickTime   prometheus.Histogram

	// Inspector metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WSConnections   prometheus.Gauge
	WSMessages      *prometheus.CounterVec

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the inspector JSON API
type Snapshot struct {
	Views          int64   `json:"views"`
	Iterations     int64   `json:"iterations"`
	FramesCaptured int64   `json:"frames_captured"`
	FramesUploaded int64   `json:"frames_uploaded"`
	LastIteration  float64 `json:"last_iteration_seconds"`
}

// NewMetrics creates a metrics collector registered on reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ViewsRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "viewhost_views_registered",
			Help: "Number of views currently in the worker registry",
		}),
		LoopIterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_loop_iterations_total",
			Help: "Total number of worker service loop iterations",
		}),
		IterationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewhost_loop_iteration_seconds",
			Help:    "Duration of one worker service loop iteration",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		ViewsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_views_created_total",
			Help: "Total number of views constructed on the worker",
		}),
		ViewsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_views_destroyed_total",
			Help: "Total number of views destroyed on the worker",
		}),
		ConstructFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_view_construct_failures_total",
			Help: "Total number of failed view constructions (retried next iteration)",
		}),
		ViewOpFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewhost_view_op_failures_total",
			Help: "View operations that failed and were swallowed at the view boundary",
		}, []string{"op"}),
		ScriptEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewhost_script_evaluations_total",
			Help: "Script evaluations by outcome",
		}, []string{"status"}),
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_frames_captured_total",
			Help: "Frames captured by the worker and published to mailboxes",
		}),
		EventsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_events_emitted_total",
			Help: "Events emitted by content and published to mailboxes",
		}),
		PageLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewhost_page_loads_total",
			Help: "Completed page loads by scheme and outcome",
		}, []string{"scheme", "status"}),

		FramesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_frames_uploaded_total",
			Help: "Frames handed to a host frame sink",
		}),
		HostTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "viewhost_host_ticks_total",
			Help: "Host frame loop ticks",
		}),
		HostTickTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewhost_host_tick_seconds",
			Help:    "Time spent consuming results in one host tick",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025},
		}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewhost_http_requests_total",
			Help: "Total number of inspector HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "viewhost_http_request_duration_seconds",
			Help:    "Inspector HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "path"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "viewhost_ws_connections",
			Help: "Number of active inspector stream connections",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "viewhost_ws_messages_total",
			Help: "Inspector stream messages by type",
		}, []string{"type"}),
	}
}

// SetViewsRegistered sets the registry size gauge
func (m *Metrics) SetViewsRegistered(count int) {
	if m == nil {
		return
	}
	m.ViewsRegistered.Set(float64(count))
	m.mu.Lock()
	m.snapshot.Views = int64(count)
	m.mu.Unlock()
}

// RecordIteration records one completed worker iteration
func (m *Metrics) RecordIteration(duration time.Duration) {
	if m == nil {
		return
	}
	m.LoopIterations.Inc()
	m.IterationDuration.Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.Iterations++
	m.snapshot.LastIteration = duration.Seconds()
	m.mu.Unlock()
}

// IncViewsCreated counts a constructed view
func (m *Metrics) IncViewsCreated() {
	if m == nil {
		return
	}
	m.ViewsCreated.Inc()
}

// IncViewsDestroyed counts a destroyed view
func (m *Metrics) IncViewsDestroyed() {
	if m == nil {
		return
	}
	m.ViewsDestroyed.Inc()
}

// IncConstructFailures counts a failed view construction
func (m *Metrics) IncConstructFailures() {
	if m == nil {
		return
	}
	m.ConstructFailures.Inc()
}

// RecordViewOpFailure counts a swallowed view operation failure
func (m *Metrics) RecordViewOpFailure(op string) {
	if m == nil {
		return
	}
	m.ViewOpFailures.WithLabelValues(op).Inc()
}

// RecordScript counts a script evaluation ("ok", "empty", "error")
func (m *Metrics) RecordScript(status string) {
	if m == nil {
		return
	}
	m.ScriptEvaluations.WithLabelValues(status).Inc()
}

// IncFramesCaptured counts a published frame
func (m *Metrics) IncFramesCaptured() {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
	m.mu.Lock()
	m.snapshot.FramesCaptured++
	m.mu.Unlock()
}

// AddEventsEmitted counts published content events
func (m *Metrics) AddEventsEmitted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsEmitted.Add(float64(n))
}

// RecordPageLoad counts a finished page load
func (m *Metrics) RecordPageLoad(scheme, status string) {
	if m == nil {
		return
	}
	m.PageLoads.WithLabelValues(scheme, status).Inc()
}

// IncFramesUploaded counts a frame handed to a sink
func (m *Metrics) IncFramesUploaded() {
	if m == nil {
		return
	}
	m.FramesUploaded.Inc()
	m.mu.Lock()
	m.snapshot.FramesUploaded++
	m.mu.Unlock()
}

// RecordHostTick records one host frame tick
func (m *Metrics) RecordHostTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.HostTicks.Inc()
	m.HostTickTime.Observe(duration.Seconds())
}

// RecordHTTPRequest records an inspector HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncWSConnections increments stream connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements stream connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSMessage records a stream message
func (m *Metrics) RecordWSMessage(msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(msgType).Inc()
}

// GetSnapshot returns current values for JSON consumers
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
