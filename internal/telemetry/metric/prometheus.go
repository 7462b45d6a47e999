package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meshnode"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	AttachAttempts   *prometheus.CounterVec
	Recoveries       *prometheus.CounterVec
	JoinCallbacks    *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	SendDuration     prometheus.Histogram
	TokenWrites      *prometheus.CounterVec
	NodeState        *prometheus.GaugeVec
}

// NewRegistry creates a registry with the application metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		AttachAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attach_attempts_total",
			Help:      "Attach calls made to the mesh daemon, by result.",
		}, []string{"result"}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Import or join recoveries after a rejected attach, by policy and result.",
		}, []string{"policy", "result"}),
		JoinCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_callbacks_total",
			Help:      "JoinComplete/JoinFailed callbacks received, by kind.",
		}, []string{"kind"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages handed to Node1.Send, by opcode.",
		}, []string{"opcode"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages delivered through Element1.MessageReceived, by opcode.",
		}, []string{"opcode"}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Latency of Node1.Send calls, including limiter wait.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		TokenWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_writes_total",
			Help:      "Token store writes, by backend and result.",
		}, []string{"backend", "result"}),
		NodeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_state",
			Help:      "1 for the current attachment state of the node.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		r.AttachAttempts,
		r.Recoveries,
		r.JoinCallbacks,
		r.MessagesSent,
		r.MessagesReceived,
		r.SendDuration,
		r.TokenWrites,
		r.NodeState,
	)

	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registerer exposes the underlying registerer for component metrics
// (the badger engine registers its size gauges here).
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordAttach counts one Attach call.
func (r *Registry) RecordAttach(result string) {
	if r == nil {
		return
	}
	r.AttachAttempts.WithLabelValues(result).Inc()
}

// RecordRecovery counts one recovery branch outcome.
func (r *Registry) RecordRecovery(policy, result string) {
	if r == nil {
		return
	}
	r.Recoveries.WithLabelValues(policy, result).Inc()
}

// RecordJoinCallback counts one join callback.
func (r *Registry) RecordJoinCallback(kind string) {
	if r == nil {
		return
	}
	r.JoinCallbacks.WithLabelValues(kind).Inc()
}

// RecordSend counts one outbound message and its latency.
func (r *Registry) RecordSend(opcode string, d time.Duration) {
	if r == nil {
		return
	}
	r.MessagesSent.WithLabelValues(opcode).Inc()
	r.SendDuration.Observe(d.Seconds())
}

// RecordReceive counts one inbound message.
func (r *Registry) RecordReceive(opcode string) {
	if r == nil {
		return
	}
	r.MessagesReceived.WithLabelValues(opcode).Inc()
}

// RecordTokenWrite counts one token store write.
func (r *Registry) RecordTokenWrite(backend, result string) {
	if r == nil {
		return
	}
	r.TokenWrites.WithLabelValues(backend, result).Inc()
}

// SetState marks state as the current node state.
func (r *Registry) SetState(state string) {
	if r == nil {
		return
	}
	r.NodeState.Reset()
	r.NodeState.WithLabelValues(state).Set(1)
}
