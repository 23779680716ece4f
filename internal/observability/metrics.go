package observability

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects in-memory operation metrics for a storage adapter:
// per-operation call and error counters plus a rolling window of latency
// points. It has no external dependencies so it can sit in the hot path of
// every transaction.
type Metrics struct {
	mu       sync.RWMutex
	points   []LatencyPoint
	maxSize  int // ring buffer capacity
	counters map[string]int64
}

// LatencyPoint is one recorded operation latency.
type LatencyPoint struct {
	Op        string        `json:"op"`
	Duration  time.Duration `json:"duration"`
	Failed    bool          `json:"failed"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewMetrics creates a collector with a max ring buffer size.
func NewMetrics(maxSize int) *Metrics {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Metrics{
		points:   make([]LatencyPoint, 0, maxSize),
		maxSize:  maxSize,
		counters: make(map[string]int64),
	}
}

// RecordOp records one completed operation: its latency, a call counter,
// and an error counter when err is non-nil.
func (m *Metrics) RecordOp(op string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	point := LatencyPoint{
		Op:        op,
		Duration:  d,
		Failed:    err != nil,
		Timestamp: time.Now(),
	}

	if len(m.points) >= m.maxSize {
		// Shift left (drop oldest).
		copy(m.points, m.points[1:])
		m.points[len(m.points)-1] = point
	} else {
		m.points = append(m.points, point)
	}

	m.counters["ops."+op]++
	if err != nil {
		m.counters["errors."+op]++
	}
}

// OpCount returns how many times op completed (successfully or not).
func (m *Metrics) OpCount(op string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters["ops."+op]
}

// ErrorCount returns how many times op failed.
func (m *Metrics) ErrorCount(op string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters["errors."+op]
}

// Query returns the retained latency points for op, oldest first. An empty
// op matches every operation.
func (m *Metrics) Query(op string) []LatencyPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []LatencyPoint
	for _, p := range m.points {
		if op != "" && p.Op != op {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Summary aggregates latency statistics for one operation.
type Summary struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// Summarize returns latency statistics for op over the retained window.
func (m *Metrics) Summarize(op string) Summary {
	points := m.Query(op)
	if len(points) == 0 {
		return Summary{}
	}

	values := make([]float64, len(points))
	sum := 0.0
	for i, p := range points {
		values[i] = float64(p.Duration)
		sum += float64(p.Duration)
	}
	sort.Float64s(values)

	return Summary{
		Count: len(values),
		Mean:  time.Duration(sum / float64(len(values))),
		Min:   time.Duration(values[0]),
		Max:   time.Duration(values[len(values)-1]),
		P50:   time.Duration(percentile(values, 0.50)),
		P95:   time.Duration(percentile(values, 0.95)),
		P99:   time.Duration(percentile(values, 0.99)),
	}
}

// Len returns the total number of retained latency points.
func (m *Metrics) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Reset clears all points and counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = m.points[:0]
	m.counters = make(map[string]int64)
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		snap[k] = v
	}
	return snap
}

// percentile computes the p-th percentile from sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
