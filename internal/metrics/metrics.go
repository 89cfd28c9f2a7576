// Package metrics defines the Prometheus collectors exported by the server.
//
// A nil *Metrics is valid and records nothing, so components can take one as
// an optional dependency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tripshare"

// Metrics holds every collector.
type Metrics struct {
	rpcRequests      *prometheus.CounterVec
	rpcDuration      *prometheus.HistogramVec
	syncMessages     *prometheus.CounterVec
	droppedStates    *prometheus.CounterVec
	relayConnections prometheus.Gauge
	relayFrames      *prometheus.CounterVec
	settlements      prometheus.Histogram
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rpcRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC calls by procedure and result code.",
		}, []string{"procedure", "code"}),
		rpcDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		syncMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_messages_total",
			Help:      "Game sync messages by type and direction (in/out).",
		}, []string{"type", "direction"}),
		droppedStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_dropped_states_total",
			Help:      "State messages a participant could not apply, by reason.",
		}, []string{"reason"}),
		relayConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_connections",
			Help:      "Open realtime relay connections.",
		}),
		relayFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_frames_total",
			Help:      "Frames received by the relay, by result.",
		}, []string{"result"}),
		settlements: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlements_per_trip",
			Help:      "Number of settlements produced per balance computation.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
	}
}

// ObserveRPC records one finished RPC.
func (m *Metrics) ObserveRPC(procedure, code string, seconds float64) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(procedure, code).Inc()
	m.rpcDuration.WithLabelValues(procedure).Observe(seconds)
}

// SyncMessage counts one sync message. direction is "in" or "out".
func (m *Metrics) SyncMessage(msgType, direction string) {
	if m == nil {
		return
	}
	m.syncMessages.WithLabelValues(msgType, direction).Inc()
}

// DroppedState counts a state message that was not applied.
func (m *Metrics) DroppedState(reason string) {
	if m == nil {
		return
	}
	m.droppedStates.WithLabelValues(reason).Inc()
}

// RelayConnected adjusts the open connection gauge by delta.
func (m *Metrics) RelayConnected(delta int) {
	if m == nil {
		return
	}
	m.relayConnections.Add(float64(delta))
}

// RelayFrame counts a relayed frame. result is "forwarded" or a drop reason.
func (m *Metrics) RelayFrame(result string) {
	if m == nil {
		return
	}
	m.relayFrames.WithLabelValues(result).Inc()
}

// Settlements records the size of a computed settlement list.
func (m *Metrics) Settlements(n int) {
	if m == nil {
		return
	}
	m.settlements.Observe(float64(n))
}
