package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bytedance/sonic"

	"boardsync/domain"
)

func taskEvent(evType string, t domain.Task) domain.Event {
	data, _ := sonic.Marshal(t)
	return domain.Event{ID: "e1", BoardID: "ev1", EntityID: t.ID, EntityType: "task", Type: evType, Data: data}
}

func TestReconcileTaskUpsertMovesAcrossLists(t *testing.T) {
	b := boardFixture()
	ev := taskEvent(domain.TaskUpdated, domain.Task{ID: "t1", ListID: "doing", Title: "first", Status: domain.StatusDoing, Order: 0})
	next, changed, err := Reconcile(b, ev)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	if got := next.TaskOrderIDs("backlog"); !equalStrings(got, []string{"t2"}) {
		t.Fatalf("unexpected backlog: %#v", got)
	}
	if got := next.TaskOrderIDs("doing"); !equalStrings(got, []string{"t1"}) {
		t.Fatalf("unexpected doing: %#v", got)
	}
	if tk := next.FindTask("t1"); tk.Status != domain.StatusDoing || tk.Order != 0 {
		t.Fatalf("unexpected task: %#v", tk)
	}
	// the input board is untouched
	if got := b.TaskOrderIDs("backlog"); !equalStrings(got, []string{"t1", "t2"}) {
		t.Fatalf("input mutated: %#v", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	b := boardFixture()
	ev := taskEvent(domain.TaskUpdated, domain.Task{ID: "t1", ListID: "doing", Title: "first", Status: domain.StatusDoing, Order: 0})
	once, changed, err := Reconcile(b, ev)
	if err != nil || !changed {
		t.Fatalf("first apply: changed=%v err=%v", changed, err)
	}
	twice, changed, err := Reconcile(once, ev)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if changed {
		t.Fatal("second apply of an identical event should be a no-op")
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("snapshots diverged:\n%#v\n%#v", once, twice)
	}
}

func TestReconcileTaskCreatedClampsOrder(t *testing.T) {
	b := boardFixture()
	ev := taskEvent(domain.TaskCreated, domain.Task{ID: "t9", ListID: "backlog", Title: "late", Status: domain.StatusTodo, Order: 99})
	next, _, err := Reconcile(b, ev)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := next.TaskOrderIDs("backlog"); !equalStrings(got, []string{"t1", "t2", "t9"}) {
		t.Fatalf("unexpected order: %#v", got)
	}
	if tk := next.FindTask("t9"); tk.Order != 2 {
		t.Fatalf("order not re-derived from position: %d", tk.Order)
	}
}

func TestReconcileTaskUnknownListUnreconcilable(t *testing.T) {
	b := boardFixture()
	ev := taskEvent(domain.TaskCreated, domain.Task{ID: "t9", ListID: "ghost"})
	if _, _, err := Reconcile(b, ev); !errors.Is(err, domain.ErrUnreconcilable) {
		t.Fatalf("expected ErrUnreconcilable, got %v", err)
	}
}

func TestReconcileMalformedPayloadUnreconcilable(t *testing.T) {
	b := boardFixture()
	ev := domain.Event{EntityID: "t1", Type: domain.TaskUpdated, Data: []byte("{broken")}
	if _, _, err := Reconcile(b, ev); !errors.Is(err, domain.ErrUnreconcilable) {
		t.Fatalf("expected ErrUnreconcilable, got %v", err)
	}
}

func TestReconcileTaskDeleteTolerant(t *testing.T) {
	b := boardFixture()
	next, changed, err := Reconcile(b, domain.Event{EntityID: "t1", Type: domain.TaskDeleted})
	if err != nil || !changed {
		t.Fatalf("delete: changed=%v err=%v", changed, err)
	}
	if got := next.TaskOrderIDs("backlog"); !equalStrings(got, []string{"t2"}) {
		t.Fatalf("unexpected backlog: %#v", got)
	}
	again, changed, err := Reconcile(next, domain.Event{EntityID: "t1", Type: domain.TaskDeleted})
	if err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if changed {
		t.Fatal("deleting an absent task should be a no-op, not an error")
	}
	if again == nil {
		t.Fatal("missing snapshot")
	}
}

func TestReconcileReorderKeepsOmittedTasks(t *testing.T) {
	b := boardFixture()
	data, _ := sonic.Marshal(domain.TaskReorderData{ListID: "backlog", IDs: []string{"t2"}})
	ev := domain.Event{Type: domain.TasksReordered, Data: data}
	next, _, err := Reconcile(b, ev)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// t1 is missing from the payload but still physically present: it is
	// retained after the explicitly ordered ids.
	if got := next.TaskOrderIDs("backlog"); !equalStrings(got, []string{"t2", "t1"}) {
		t.Fatalf("unexpected order: %#v", got)
	}
	for i, task := range next.List("backlog").Tasks {
		if task.Order != i {
			t.Fatalf("order %d at position %d", task.Order, i)
		}
	}
}

func TestReconcileReorderSkipsUnknownIDs(t *testing.T) {
	b := boardFixture()
	data, _ := sonic.Marshal(domain.TaskReorderData{ListID: "backlog", IDs: []string{"ghost", "t2", "t1"}})
	next, _, err := Reconcile(b, domain.Event{Type: domain.TasksReordered, Data: data})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := next.TaskOrderIDs("backlog"); !equalStrings(got, []string{"t2", "t1"}) {
		t.Fatalf("unexpected order: %#v", got)
	}
}

func TestReconcileListUpsertPreservesTasks(t *testing.T) {
	b := boardFixture()
	data, _ := sonic.Marshal(domain.ListData{ID: "backlog", EventID: "ev1", Title: "Renamed", Order: 1})
	next, changed, err := Reconcile(b, domain.Event{EntityID: "backlog", Type: domain.ListUpdated, Data: data})
	if err != nil || !changed {
		t.Fatalf("reconcile: changed=%v err=%v", changed, err)
	}
	if got := next.ListOrderIDs(); !equalStrings(got, []string{"doing", "backlog"}) {
		t.Fatalf("unexpected list order: %#v", got)
	}
	renamed := next.List("backlog")
	if renamed.Title != "Renamed" || renamed.Order != 1 {
		t.Fatalf("unexpected list: %#v", renamed)
	}
	if got := next.TaskOrderIDs("backlog"); !equalStrings(got, []string{"t1", "t2"}) {
		t.Fatalf("local tasks lost on upsert: %#v", got)
	}
}

func TestReconcileListCreated(t *testing.T) {
	b := boardFixture()
	data, _ := sonic.Marshal(domain.ListData{ID: "review", Title: "Review", Order: 1})
	next, _, err := Reconcile(b, domain.Event{EntityID: "review", Type: domain.ListCreated, Data: data})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := next.ListOrderIDs(); !equalStrings(got, []string{"backlog", "review", "doing"}) {
		t.Fatalf("unexpected list order: %#v", got)
	}
	if l := next.List("review"); l.EventID != "ev1" {
		t.Fatalf("event id not inherited: %#v", l)
	}
}

func TestReconcileListsReordered(t *testing.T) {
	b := boardFixture()
	data, _ := sonic.Marshal(domain.ListReorderData{EventID: "ev1", IDs: []string{"doing", "backlog"}})
	next, _, err := Reconcile(b, domain.Event{Type: domain.ListsReordered, Data: data})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := next.ListOrderIDs(); !equalStrings(got, []string{"doing", "backlog"}) {
		t.Fatalf("unexpected order: %#v", got)
	}
	for i, l := range next.Lists {
		if l.Order != i {
			t.Fatalf("order %d at position %d", l.Order, i)
		}
	}
}

func TestApplyRemoteRefetchesOnUnreconcilable(t *testing.T) {
	server := boardFixture()
	server.Lists[0].Title = "Server Truth"
	fp := &fakePersist{board: *server}
	e := New(fp, "u1", boardFixture())
	ev := taskEvent(domain.TaskCreated, domain.Task{ID: "t9", ListID: "ghost"})
	if err := e.ApplyRemote(context.Background(), ev); !errors.Is(err, domain.ErrUnreconcilable) {
		t.Fatalf("expected ErrUnreconcilable, got %v", err)
	}
	if b := e.Snapshot(); b.Lists[0].Title != "Server Truth" {
		t.Fatalf("snapshot not refetched: %q", b.Lists[0].Title)
	}
}

func TestApplyRemoteDropsDragOfDeletedTask(t *testing.T) {
	fp := &fakePersist{}
	e := New(fp, "u1", boardFixture())
	e.GrabTask("t1", domain.DragModeKeyboard)
	if err := e.ApplyRemote(context.Background(), domain.Event{EntityID: "t1", Type: domain.TaskDeleted}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if e.Drag().Active() {
		t.Fatal("drag should be released when the dragged task disappears")
	}
}

func TestApplyRemoteUnknownTypeIgnored(t *testing.T) {
	fp := &fakePersist{}
	e := New(fp, "u1", boardFixture())
	before := e.Snapshot()
	if err := e.ApplyRemote(context.Background(), domain.Event{Type: "chat-message"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(before, e.Snapshot()) {
		t.Fatal("unknown event type mutated the snapshot")
	}
}
