package observability

import (
	"errors"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics(100)
	if m.Len() != 0 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestNewMetrics_ZeroSize(t *testing.T) {
	m := NewMetrics(0) // Should default.
	if m.maxSize != 10000 {
		t.Errorf("maxSize = %d, want 10000", m.maxSize)
	}
}

func TestMetrics_RecordOp(t *testing.T) {
	m := NewMetrics(100)
	m.RecordOp("get", 2*time.Millisecond, nil)
	m.RecordOp("get", 3*time.Millisecond, nil)
	m.RecordOp("create", time.Millisecond, errors.New("boom"))

	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}
	if m.OpCount("get") != 2 {
		t.Errorf("OpCount(get) = %d, want 2", m.OpCount("get"))
	}
	if m.ErrorCount("get") != 0 {
		t.Errorf("ErrorCount(get) = %d, want 0", m.ErrorCount("get"))
	}
	if m.ErrorCount("create") != 1 {
		t.Errorf("ErrorCount(create) = %d, want 1", m.ErrorCount("create"))
	}
}

func TestMetrics_RingBuffer(t *testing.T) {
	m := NewMetrics(3) // Tiny buffer.

	for i := 0; i < 5; i++ {
		m.RecordOp("list", time.Duration(i)*time.Millisecond, nil)
	}

	// Should retain only the 3 most recent.
	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}
	points := m.Query("list")
	if len(points) != 3 {
		t.Fatalf("Query = %d, want 3", len(points))
	}
	if points[0].Duration != 2*time.Millisecond {
		t.Errorf("oldest = %v, want 2ms", points[0].Duration)
	}
	if points[2].Duration != 4*time.Millisecond {
		t.Errorf("newest = %v, want 4ms", points[2].Duration)
	}
	// Counters survive the buffer eviction.
	if m.OpCount("list") != 5 {
		t.Errorf("OpCount = %d, want 5", m.OpCount("list"))
	}
}

func TestMetrics_Query_AllOps(t *testing.T) {
	m := NewMetrics(100)
	m.RecordOp("get", time.Millisecond, nil)
	m.RecordOp("create", time.Millisecond, nil)

	if got := len(m.Query("")); got != 2 {
		t.Errorf("Query(\"\") = %d, want 2", got)
	}
	if got := len(m.Query("get")); got != 1 {
		t.Errorf("Query(get) = %d, want 1", got)
	}
}

func TestMetrics_Summarize(t *testing.T) {
	m := NewMetrics(100)
	for i := 1; i <= 4; i++ {
		m.RecordOp("update", time.Duration(i)*time.Millisecond, nil)
	}

	s := m.Summarize("update")
	if s.Count != 4 {
		t.Errorf("Count = %d, want 4", s.Count)
	}
	if s.Min != time.Millisecond {
		t.Errorf("Min = %v", s.Min)
	}
	if s.Max != 4*time.Millisecond {
		t.Errorf("Max = %v", s.Max)
	}
	if s.Mean != 2500*time.Microsecond {
		t.Errorf("Mean = %v", s.Mean)
	}
}

func TestMetrics_Summarize_Empty(t *testing.T) {
	m := NewMetrics(100)
	s := m.Summarize("get")
	if s.Count != 0 {
		t.Errorf("Count = %d, want 0", s.Count)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics(100)
	m.RecordOp("get", time.Millisecond, nil)
	m.Reset()

	if m.Len() != 0 {
		t.Errorf("Len after Reset = %d", m.Len())
	}
	if m.OpCount("get") != 0 {
		t.Errorf("OpCount after Reset = %d", m.OpCount("get"))
	}
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics(100)
	m.RecordOp("get", time.Millisecond, nil)
	m.RecordOp("get", time.Millisecond, errors.New("boom"))

	snap := m.Snapshot()
	if snap["ops.get"] != 2 {
		t.Errorf("ops.get = %d", snap["ops.get"])
	}
	if snap["errors.get"] != 1 {
		t.Errorf("errors.get = %d", snap["errors.get"])
	}

	// Mutating the snapshot must not touch the collector.
	snap["ops.get"] = 99
	if m.OpCount("get") != 2 {
		t.Errorf("OpCount = %d after snapshot mutation", m.OpCount("get"))
	}
}
