package observability

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsSnapshotCopiesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/jobs/:id/state", "PUT", 200, 15*time.Millisecond)
	m.RecordRequest("/jobs/:id/state", "PUT", 200, 5*time.Millisecond)
	m.RecordError("/jobs/:id/state", "PUT", "INVALID_TRANSITION")
	m.RecordTransition("CREATED", "IN_DIAGNOSIS")
	m.RecordRejectedTransition("CREATED", "DELIVERED")
	m.RecordStateConflict()

	snap := m.Snapshot()
	if got := snap.Requests["/jobs/:id/state|PUT|200"]; got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
	if got := snap.RequestDurationMs["/jobs/:id/state|PUT|200"]; got != 20 {
		t.Fatalf("duration = %d, want 20", got)
	}
	if snap.Errors["/jobs/:id/state|PUT|INVALID_TRANSITION"] != 1 {
		t.Fatalf("errors = %v", snap.Errors)
	}
	if snap.Transitions["CREATED->IN_DIAGNOSIS"] != 1 || snap.RejectedTransitions["CREATED->DELIVERED"] != 1 {
		t.Fatalf("transition counters = %v / %v", snap.Transitions, snap.RejectedTransitions)
	}
	if snap.StateConflicts != 1 {
		t.Fatalf("conflicts = %d, want 1", snap.StateConflicts)
	}

	snap.Transitions["CREATED->IN_DIAGNOSIS"] = 99
	if m.Snapshot().Transitions["CREATED->IN_DIAGNOSIS"] != 1 {
		t.Fatal("snapshot must not alias internal counters")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordTransition("A", "B")
	m.RecordRejectedTransition("A", "B")
	m.RecordStateConflict()
	if snap := m.Snapshot(); snap.Requests != nil {
		t.Fatalf("nil metrics snapshot = %+v", snap)
	}
}

func TestMetricsConcurrentUse(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordTransition("CREATED", "IN_DIAGNOSIS")
		}()
	}
	wg.Wait()
	if got := m.Snapshot().Transitions["CREATED->IN_DIAGNOSIS"]; got != 50 {
		t.Fatalf("transitions = %d, want 50", got)
	}
}
