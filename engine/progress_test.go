package engine

import (
	"testing"
	"time"

	"boardsync/domain"
)

func TestScheduleProgressRefreshCoalesces(t *testing.T) {
	fp := &fakePersist{progress: domain.ProgressSnapshot{
		Counts: domain.StatusCounts{Todo: 7},
		TTL:    time.Millisecond,
	}}
	e := New(fp, "u1", boardFixture())
	e.SetRefreshFloor(20 * time.Millisecond)

	e.ScheduleProgressRefresh()
	e.ScheduleProgressRefresh()
	e.ScheduleProgressRefresh()

	deadline := time.Now().Add(2 * time.Second)
	for {
		fp.mu.Lock()
		n := fp.progressFetches
		fp.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refresh never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// allow a straggler to fire if coalescing were broken
	time.Sleep(50 * time.Millisecond)
	fp.mu.Lock()
	n := fp.progressFetches
	fp.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected one coalesced refresh, got %d", n)
	}
	if got := e.Progress().Counts.Todo; got != 7 {
		t.Fatalf("aggregate not replaced by authoritative snapshot: %d", got)
	}
}

func TestRefreshDelayBoundedByFloor(t *testing.T) {
	fp := &fakePersist{}
	e := New(fp, "u1", boardFixture())
	e.SetRefreshFloor(30 * time.Millisecond)

	e.ScheduleProgressRefresh()
	time.Sleep(10 * time.Millisecond)
	fp.mu.Lock()
	early := fp.progressFetches
	fp.mu.Unlock()
	if early != 0 {
		t.Fatal("refresh fired before the floor elapsed")
	}
}

func TestRefreshFailureKeepsPatchedAggregate(t *testing.T) {
	fp := &fakePersist{fail: map[string]error{"fetchProgress": errBoom}}
	e := New(fp, "u1", boardFixture())
	e.SetRefreshFloor(5 * time.Millisecond)
	before := e.Progress()

	e.ScheduleProgressRefresh()
	time.Sleep(60 * time.Millisecond)

	after := e.Progress()
	if after.Counts != before.Counts {
		t.Fatalf("aggregate replaced despite refresh failure: %#v", after.Counts)
	}
	// the timer slot is free again for the next invalidation
	e.ScheduleProgressRefresh()
	time.Sleep(60 * time.Millisecond)
	fp.mu.Lock()
	n := fp.progressFetches
	fp.mu.Unlock()
	if n != 2 {
		t.Fatalf("expected a second refresh attempt, got %d", n)
	}
}
