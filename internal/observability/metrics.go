package observability

import (
	"sync"
	"time"
)

type MethodSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// BreakerSnapshot is the latest observed state of one remote's breaker.
type BreakerSnapshot struct {
	State       string `json:"state"`
	Transitions int64  `json:"transitions"`
}

type Snapshot struct {
	UptimeSec       int64                      `json:"uptime_sec"`
	TotalRequests   int64                      `json:"total_requests"`
	TotalErrors     int64                      `json:"total_errors"`
	InFlight        int64                      `json:"in_flight"`
	RetryWaits      int64                      `json:"retry_waits"`
	RetryWaitMs     int64                      `json:"retry_wait_ms"`
	RateLimitWaits  int64                      `json:"rate_limit_waits"`
	RateLimitWaitMs int64                      `json:"rate_limit_wait_ms"`
	Breakers        map[string]BreakerSnapshot `json:"breakers"`
	Methods         map[string]MethodSnapshot  `json:"methods"`
}

type methodStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

type breakerStats struct {
	state       string
	transitions int64
}

type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	methods        map[string]*methodStats
	breakers       map[string]*breakerStats
	retryWaits     int64
	retryWait      time.Duration
	rateLimitWaits int64
	rateLimitWait  time.Duration
}

type CallSpan struct {
	metrics *Metrics
	method  string
	start   time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:    time.Now(),
		methods:  make(map[string]*methodStats),
		breakers: make(map[string]*breakerStats),
	}
}

func (m *Metrics) Start(method string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureMethod(method)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics: m,
		method:  method,
		start:   time.Now(),
	}
}

func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.method, dur, err != nil)
}

// AddRetryWait records one backoff wait spent on an outbound remote call.
func (m *Metrics) AddRetryWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.retryWaits++
	m.retryWait += d
	m.mu.Unlock()
}

// AddRateLimitWait records one wait imposed by the ingress rate limiter.
func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

// SetBreakerState records a circuit breaker transition for a remote service.
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats, ok := m.breakers[name]
	if !ok {
		stats = &breakerStats{}
		m.breakers[name] = stats
	}
	stats.state = state
	stats.transitions++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		UptimeSec:       int64(now.Sub(m.start).Seconds()),
		Methods:         make(map[string]MethodSnapshot),
		Breakers:        make(map[string]BreakerSnapshot),
		RetryWaits:      m.retryWaits,
		RetryWaitMs:     int64(m.retryWait / time.Millisecond),
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
	}

	for method, stats := range m.methods {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Methods[method] = MethodSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	for name, stats := range m.breakers {
		snap.Breakers[name] = BreakerSnapshot{
			State:       stats.state,
			Transitions: stats.transitions,
		}
	}

	return snap
}

func (m *Metrics) ensureMethod(method string) *methodStats {
	stats, ok := m.methods[method]
	if !ok {
		stats = &methodStats{}
		m.methods[method] = stats
	}
	return stats
}

func (m *Metrics) finish(method string, dur time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats := m.ensureMethod(method)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
