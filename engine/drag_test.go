package engine

import (
	"context"
	"testing"

	"boardsync/domain"
)

func TestDropIndexForOffset(t *testing.T) {
	cases := []struct {
		ratio     float64
		lastHover int
		length    int
		want      int
	}{
		{0.1, 3, 5, 0},    // top band
		{0.25, 3, 5, 0},   // top band boundary
		{0.9, 1, 5, 5},    // bottom band
		{0.75, 1, 5, 5},   // bottom band boundary
		{0.5, 2, 5, 2},    // middle band retains hover
		{0.5, -1, 5, 5},   // middle band without hover falls to the end
		{0.5, 0, 0, 0},    // empty list
	}
	for _, c := range cases {
		if got := DropIndexForOffset(c.ratio, c.lastHover, c.length); got != c.want {
			t.Fatalf("ratio=%v hover=%d len=%d: got %d want %d", c.ratio, c.lastHover, c.length, got, c.want)
		}
	}
}

func TestResolveDropIndexUsesStoredHover(t *testing.T) {
	e := New(&fakePersist{}, "u1", boardFixture())
	e.GrabTask("t1", domain.DragModePointer)
	e.SetHoverIndex(1)
	if got := e.ResolveDropIndex(0.5, 2); got != 1 {
		t.Fatalf("middle band should keep hover index, got %d", got)
	}
	if got := e.ResolveDropIndex(0.1, 2); got != 0 {
		t.Fatalf("top band should resolve to front, got %d", got)
	}
}

func TestMoveTaskAcrossEdgesAreNoops(t *testing.T) {
	fp := &fakePersist{}
	e := New(fp, "u1", boardFixture())
	e.GrabTask("t1", domain.DragModeKeyboard)
	// backlog is the leftmost list
	if err := e.MoveTaskAcross(context.Background(), -1); err != nil {
		t.Fatalf("left edge: %v", err)
	}
	if got := fp.recorded(); len(got) != 0 {
		t.Fatalf("edge move should not persist: %#v", got)
	}
	if !e.Drag().Active() {
		t.Fatal("edge move should keep the drag armed")
	}
}

func TestMoveTaskAcrossChainsKeyboard(t *testing.T) {
	fp := &fakePersist{}
	e := New(fp, "u1", boardFixture())
	e.GrabTask("t1", domain.DragModeKeyboard)
	if err := e.MoveTaskAcross(context.Background(), 1); err != nil {
		t.Fatalf("move right: %v", err)
	}
	d := e.Drag()
	if !d.Active() || d.ListID != "doing" {
		t.Fatalf("drag should re-arm against the new source list: %#v", d)
	}
	// chain straight back without re-grabbing
	if err := e.MoveTaskAcross(context.Background(), -1); err != nil {
		t.Fatalf("move left: %v", err)
	}
	if got := e.Snapshot().TaskOrderIDs("backlog"); !equalStrings(got, []string{"t2", "t1"}) {
		t.Fatalf("unexpected backlog: %#v", got)
	}
}

func TestMoveTaskByWithinList(t *testing.T) {
	fp := &fakePersist{}
	e := New(fp, "u1", boardFixture())
	e.GrabTask("t2", domain.DragModeKeyboard)
	if err := e.MoveTaskBy(context.Background(), -1); err != nil {
		t.Fatalf("move up: %v", err)
	}
	if got := e.Snapshot().TaskOrderIDs("backlog"); !equalStrings(got, []string{"t2", "t1"}) {
		t.Fatalf("unexpected order: %#v", got)
	}
	// moving past the top clamps and becomes a no-op commit
	calls := len(fp.recorded())
	if err := e.MoveTaskBy(context.Background(), -1); err != nil {
		t.Fatalf("clamped move: %v", err)
	}
	if len(fp.recorded()) != calls {
		t.Fatalf("clamped move should not persist: %#v", fp.recorded())
	}
}

func TestMoveTaskByDownward(t *testing.T) {
	fp := &fakePersist{}
	e := New(fp, "u1", boardFixture())
	e.GrabTask("t1", domain.DragModeKeyboard)
	if err := e.MoveTaskBy(context.Background(), 1); err != nil {
		t.Fatalf("move down: %v", err)
	}
	if got := e.Snapshot().TaskOrderIDs("backlog"); !equalStrings(got, []string{"t2", "t1"}) {
		t.Fatalf("unexpected order: %#v", got)
	}
	if got := fp.recorded(); !equalStrings(got, []string{"reorderTasks backlog [t2 t1]"}) {
		t.Fatalf("unexpected calls: %#v", got)
	}
	// moving past the bottom clamps and becomes a no-op commit
	calls := len(fp.recorded())
	if err := e.MoveTaskBy(context.Background(), 1); err != nil {
		t.Fatalf("clamped move: %v", err)
	}
	if len(fp.recorded()) != calls {
		t.Fatalf("clamped move should not persist: %#v", fp.recorded())
	}
	if d := e.Drag(); !d.Active() {
		t.Fatal("keyboard drag should stay armed")
	}
}
