package observability

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"ivr-platform/internal/dialogue"
	"ivr-platform/internal/intent"
	"ivr-platform/internal/ivr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects dialogue engine metrics. It implements ivr.Observer.
//
// Usage:
//
//	m := observability.NewMetrics(prometheus.DefaultRegisterer, store)
//	engine := ivr.NewEngine(store, ivr.Options{Observers: []ivr.Observer{m}})
type Metrics struct {
	// Turns counts handled turns.
	// Labels: intent (book_ticket..unknown), signal (continue|terminate|transfer)
	Turns *prometheus.CounterVec

	// TurnDuration measures HandleTurn latency in seconds, store round trip included.
	TurnDuration prometheus.Histogram

	// ActiveCalls is the number of live contexts in the call store, read at
	// scrape time. Replicas sharing a redis store all report the same value.
	ActiveCalls prometheus.GaugeFunc

	// TurnErrors counts failed turns.
	// Labels: kind (invalid_call_id|internal_state|lock_timeout|call_ended|canceled|backend)
	TurnErrors *prometheus.CounterVec

	// CallsEnded counts removed call contexts.
	// Labels: reason (hangup|farewell|admin|idle)
	CallsEnded *prometheus.CounterVec

	// Key-TTL expiry on redis removes contexts without a CallEnded callback.
	calls      CallLister
	lastActive atomic.Uint64
}

// CallLister is the slice of session.Store the active-calls gauge reads.
type CallLister interface {
	List(ctx context.Context) ([]dialogue.CallContext, error)
}

const listTimeout = 2 * time.Second

// NewMetrics creates the metrics and registers them with reg. calls backs
// ivr_active_calls; nil reports zero.
// Tests should pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer, calls CallLister) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{calls: calls}
	m.Turns = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_turns_total",
			Help: "Total number of dialogue turns by intent and control signal",
		},
		[]string{"intent", "signal"},
	)
	m.TurnDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ivr_turn_duration_seconds",
			Help:    "Duration of dialogue turns in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
	m.ActiveCalls = f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ivr_active_calls",
			Help: "Number of calls with a live dialogue context",
		},
		m.activeCalls,
	)
	m.TurnErrors = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_turn_errors_total",
			Help: "Total number of failed dialogue turns by error kind",
		},
		[]string{"kind"},
	)
	m.CallsEnded = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_calls_ended_total",
			Help: "Total number of ended calls by reason",
		},
		[]string{"reason"},
	)
	return m
}

// activeCalls keeps the previous value when the store cannot be listed.
func (m *Metrics) activeCalls() float64 {
	if m.calls == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	defer cancel()
	list, err := m.calls.List(ctx)
	if err != nil {
		return math.Float64frombits(m.lastActive.Load())
	}
	v := float64(len(list))
	m.lastActive.Store(math.Float64bits(v))
	return v
}

func (m *Metrics) TurnHandled(ctx context.Context, rec ivr.TurnRecord) {
	in := rec.Intent
	if in == "" {
		in = intent.Unknown
	}
	m.Turns.WithLabelValues(in.String(), string(rec.Signal)).Inc()
	m.TurnDuration.Observe(rec.Duration.Seconds())
	if rec.CallEnded {
		m.CallsEnded.WithLabelValues(string(ivr.EndReasonFarewell)).Inc()
	}
}

func (m *Metrics) TurnFailed(ctx context.Context, callID string, err error) {
	m.TurnErrors.WithLabelValues(ivr.ErrorKind(err)).Inc()
}

func (m *Metrics) CallEnded(ctx context.Context, callID string, reason ivr.EndReason) {
	m.CallsEnded.WithLabelValues(string(reason)).Inc()
}
