package turn

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// telemetryEveryN completed turns triggers an automatic telemetry
// message (§4.7.5).
const telemetryEveryN = 5

// metrics are the process-wide Prometheus collectors every session's
// Telemetry reports into. Kept as package-level vars registered once,
// the conventional client_golang pattern (seen throughout the
// kadirpekel-hector example's instrumentation).
var (
	metricsOnce sync.Once

	completedTurnsTotal      *prometheus.CounterVec
	speculativelyCanceledTot *prometheus.CounterVec
	interruptionsTotal       *prometheus.CounterVec
	tokensWastedTotal        *prometheus.CounterVec
	bufferOverflowTotal      *prometheus.CounterVec
	turnLatencyMS            *prometheus.HistogramVec
	debounceGauge            *prometheus.GaugeVec
)

func registerMetrics(reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		completedTurnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnframe_completed_turns_total",
			Help: "Turns that reached a terminal completed outcome.",
		}, []string{"session_id"})
		speculativelyCanceledTot = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnframe_speculatively_canceled_total",
			Help: "Turns whose speculative execution was silently canceled.",
		}, []string{"session_id"})
		interruptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnframe_interruptions_total",
			Help: "Turns ended by user barge-in.",
		}, []string{"session_id"})
		tokensWastedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnframe_tokens_wasted_total",
			Help: "Sentences generated speculatively then discarded.",
		}, []string{"session_id"})
		bufferOverflowTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnframe_audio_buffer_overflow_total",
			Help: "Inbound audio frames dropped due to buffer overflow.",
		}, []string{"session_id"})
		turnLatencyMS = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "turnframe_turn_latency_ms",
			Help:    "Final transcript to first audio chunk, in milliseconds.",
			Buckets: []float64{100, 250, 500, 750, 1000, 1500, 2000, 3000, 5000},
		}, []string{"session_id"})
		debounceGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "turnframe_debounce_ms",
			Help: "Current adaptive silence debounce value.",
		}, []string{"session_id"})

		for _, c := range []prometheus.Collector{
			completedTurnsTotal, speculativelyCanceledTot, interruptionsTotal,
			tokensWastedTotal, bufferOverflowTotal, turnLatencyMS, debounceGauge,
		} {
			_ = reg.Register(c) // duplicate registration across sessions is expected; ignore it
		}
	})
}

// Telemetry is C11's per-session counter bundle (§4.7.5): completed
// turns, speculative cancellations, interruptions, wasted tokens, a
// rolling average turn latency, and the live debounce. It both answers
// Snapshot() for the wire `telemetry` message and feeds the Prometheus
// vectors registered above.
type Telemetry struct {
	mu sync.Mutex

	sessionID string

	completedTurns        int
	speculativelyCanceled int
	interruptions         int
	tokensWasted          int
	bufferOverflows       int
	latencySum            time.Duration
	latencyCount          int

	sinceLastReport int
}

// NewTelemetry registers this session's label set against the shared
// Prometheus collectors and returns a zeroed counter bundle.
func NewTelemetry(sessionID string, reg prometheus.Registerer) *Telemetry {
	if reg != nil {
		registerMetrics(reg)
	}
	return &Telemetry{sessionID: sessionID}
}

func (t *Telemetry) RecordCompleted() {
	t.mu.Lock()
	t.completedTurns++
	t.sinceLastReport++
	t.mu.Unlock()
	if completedTurnsTotal != nil {
		completedTurnsTotal.WithLabelValues(t.sessionID).Inc()
	}
}

func (t *Telemetry) RecordSpeculativelyCanceled() {
	t.mu.Lock()
	t.speculativelyCanceled++
	t.mu.Unlock()
	if speculativelyCanceledTot != nil {
		speculativelyCanceledTot.WithLabelValues(t.sessionID).Inc()
	}
}

func (t *Telemetry) RecordInterruption() {
	t.mu.Lock()
	t.interruptions++
	t.mu.Unlock()
	if interruptionsTotal != nil {
		interruptionsTotal.WithLabelValues(t.sessionID).Inc()
	}
}

func (t *Telemetry) RecordTokensWasted(n int) {
	t.mu.Lock()
	t.tokensWasted += n
	t.mu.Unlock()
	if tokensWastedTotal != nil {
		tokensWastedTotal.WithLabelValues(t.sessionID).Add(float64(n))
	}
}

func (t *Telemetry) RecordBufferOverflow(dropped int) {
	t.mu.Lock()
	t.bufferOverflows += dropped
	t.mu.Unlock()
	if bufferOverflowTotal != nil {
		bufferOverflowTotal.WithLabelValues(t.sessionID).Add(float64(dropped))
	}
}

func (t *Telemetry) RecordLatency(d time.Duration) {
	t.mu.Lock()
	t.latencySum += d
	t.latencyCount++
	t.mu.Unlock()
	if turnLatencyMS != nil {
		turnLatencyMS.WithLabelValues(t.sessionID).Observe(float64(d.Milliseconds()))
	}
}

func (t *Telemetry) RecordDebounce(ms int) {
	if debounceGauge != nil {
		debounceGauge.WithLabelValues(t.sessionID).Set(float64(ms))
	}
}

// ShouldReport reports whether telemetryEveryN completed turns have
// elapsed since the last report, resetting the counter if so (§4.7.5).
func (t *Telemetry) ShouldReport() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sinceLastReport >= telemetryEveryN {
		t.sinceLastReport = 0
		return true
	}
	return false
}

// Snapshot returns the current wire-ready telemetry payload.
func (t *Telemetry) Snapshot(debounceMS int, cancellationRate float64) TelemetryPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	var avgLatency int64
	if t.latencyCount > 0 {
		avgLatency = (t.latencySum / time.Duration(t.latencyCount)).Milliseconds()
	}
	return TelemetryPayload{
		CancellationRate:  cancellationRate,
		AvgDebounceMS:     debounceMS,
		TurnLatencyMS:     avgLatency,
		TotalTurns:        t.completedTurns + t.speculativelyCanceled,
		TokensWasted:      t.tokensWasted,
		InterruptionCount: t.interruptions,
	}
}
