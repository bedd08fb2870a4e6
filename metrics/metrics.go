// Package metrics exposes the Prometheus counters and gauges behind the
// dispatcher's Recorder.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the small set of observations the dispatcher makes. It is an
// interface so tests can substitute a no-op recorder without registering
// real collectors against the default Prometheus registry.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	PendingQueueDepth(n int)
	SyncRestarted()
	BbsSubscriptionCount(n int)
}

// PrometheusRecorder is the default Recorder, registering its collectors
// against the given prometheus.Registerer.
type PrometheusRecorder struct {
	connections      prometheus.Gauge
	pendingQueue     prometheus.Gauge
	syncRestarts     prometheus.Counter
	bbsSubscriptions prometheus.Gauge
}

// NewPrometheusRecorder registers and returns a PrometheusRecorder.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flyclient",
			Name:      "connections_open",
			Help:      "Number of live peer connections.",
		}),
		pendingQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flyclient",
			Name:      "pending_requests",
			Help:      "Requests waiting in the global dispatch queue.",
		}),
		syncRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flyclient",
			Name:      "sync_restarts_total",
			Help:      "Number of times a bisection sync was restarted due to a detected reorg.",
		}),
		bbsSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flyclient",
			Name:      "bbs_subscriptions",
			Help:      "Number of active BBS subscriptions.",
		}),
	}
	reg.MustRegister(r.connections, r.pendingQueue, r.syncRestarts, r.bbsSubscriptions)
	return r
}

func (r *PrometheusRecorder) ConnectionOpened()          { r.connections.Inc() }
func (r *PrometheusRecorder) ConnectionClosed()          { r.connections.Dec() }
func (r *PrometheusRecorder) PendingQueueDepth(n int)    { r.pendingQueue.Set(float64(n)) }
func (r *PrometheusRecorder) SyncRestarted()             { r.syncRestarts.Inc() }
func (r *PrometheusRecorder) BbsSubscriptionCount(n int) { r.bbsSubscriptions.Set(float64(n)) }

// NoopRecorder discards every observation; used by tests and by callers
// that do not want a Prometheus registry dependency.
type NoopRecorder struct{}

func (NoopRecorder) ConnectionOpened()          {}
func (NoopRecorder) ConnectionClosed()          {}
func (NoopRecorder) PendingQueueDepth(int)      {}
func (NoopRecorder) SyncRestarted()             {}
func (NoopRecorder) BbsSubscriptionCount(int)   {}
