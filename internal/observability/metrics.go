package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mirrorvoice"

var sessionStates = []string{"idle", "command_capture", "processing", "speaking", "error"}

// Metrics groups all Prometheus instruments used by the assistant.
type Metrics struct {
	SessionTransitions *prometheus.CounterVec
	SessionState       *prometheus.GaugeVec
	WakeDetections     prometheus.Counter
	ToolCalls          *prometheus.CounterVec
	ProviderErrors     *prometheus.CounterVec
	ResponseLatency    prometheus.Histogram
	DisplayClients     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments on reg. A nil reg uses a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions by source and target state.",
		}, []string{"from", "to"}),
		SessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state, one-hot by state label.",
		}, []string{"state"}),
		WakeDetections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_detections_total",
			Help:      "Wake word detections.",
		}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and kind.",
		}, []string{"provider", "kind"}),
		ResponseLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_ms",
			Help:      "Time from final transcript to reply text in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 3000, 5000, 8000, 13000, 20000},
		}),
		DisplayClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_clients",
			Help:      "Connected display websocket clients.",
		}),
		gatherer: reg,
	}
}

// ObserveTransition counts a transition and moves the one-hot state gauge
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(from, to).Inc()
	m.SetState(to)
}

// SetState moves the one-hot state gauge without counting a transition
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) ObserveResponseLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ResponseLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) ObserveProviderError(provider, kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, kind).Inc()
}

func (m *Metrics) ObserveWake() {
	if m == nil {
		return
	}
	m.WakeDetections.Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SetDisplayClients(n int) {
	if m == nil {
		return
	}
	m.DisplayClients.Set(float64(n))
}
