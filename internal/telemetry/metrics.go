package telemetry

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Counter struct {
	val atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

type Gauge struct {
	val atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.val.Store(v) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// LatencyTracker keeps the last maxKeep samples for percentile reads.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	maxKeep int
}

func NewLatencyTracker(maxKeep int) *LatencyTracker {
	return &LatencyTracker{maxKeep: maxKeep}
}

func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.maxKeep {
		lt.samples = lt.samples[len(lt.samples)-lt.maxKeep:]
	}
}

func (lt *LatencyTracker) P50() time.Duration { return lt.percentile(0.50) }
func (lt *LatencyTracker) P99() time.Duration { return lt.percentile(0.99) }

func (lt *LatencyTracker) percentile(p float64) time.Duration {
	lt.mu.Lock()
	sorted := slices.Clone(lt.samples)
	lt.mu.Unlock()
	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	return sorted[int(float64(len(sorted)-1)*p)]
}

// Metrics is the global metrics registry.
var Metrics = struct {
	KicksResolved   Counter
	Goals           Counter
	Saves           Counter
	DivesLeft       Counter
	DivesRight      Counter
	KicksThrottled  Counter
	SessionsStarted Counter
	ActiveSessions  Gauge
	KickLogErrors   Counter
	InboxOverflows  Counter
	KickLatency     *LatencyTracker
}{
	KickLatency: NewLatencyTracker(1000),
}

// Collectors exposes Metrics to Prometheus. Each collector reads the
// atomic value at scrape time, so the counters above stay the only source.
func Collectors() []prometheus.Collector {
	counter := func(name, help string, c *Counter) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "penalty", Name: name, Help: help,
		}, func() float64 { return float64(c.Value()) })
	}
	gauge := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "penalty", Name: name, Help: help,
		}, fn)
	}

	m := &Metrics
	return []prometheus.Collector{
		counter("kicks_resolved_total", "Kicks resolved across all sessions", &m.KicksResolved),
		counter("goals_total", "Kicks that scored", &m.Goals),
		counter("saves_total", "Kicks the keeper saved", &m.Saves),
		counter("keeper_dives_left_total", "Keeper dives to the left", &m.DivesLeft),
		counter("keeper_dives_right_total", "Keeper dives to the right", &m.DivesRight),
		counter("kicks_throttled_total", "Kick requests rejected by the per-session limiter", &m.KicksThrottled),
		counter("sessions_started_total", "Sessions started", &m.SessionsStarted),
		counter("kicklog_errors_total", "Kick log write failures", &m.KickLogErrors),
		counter("inbox_overflows_total", "Closures dropped because a session inbox was full", &m.InboxOverflows),
		gauge("active_sessions", "Sessions currently open", func() float64 { return float64(m.ActiveSessions.Value()) }),
		gauge("kick_latency_p50_seconds", "Median kick handling latency", func() float64 { return m.KickLatency.P50().Seconds() }),
		gauge("kick_latency_p99_seconds", "p99 kick handling latency", func() float64 { return m.KickLatency.P99().Seconds() }),
	}
}

// NewRegistry returns a registry holding Collectors plus the Go runtime
// and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
