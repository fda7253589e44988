package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// Reconcile folds one push-event envelope into a fresh clone of the board.
// It returns the new snapshot and whether it differs from the input; the
// input is never mutated. A malformed payload or a reference to an entity
// the board does not know yields domain.ErrUnreconcilable, which callers
// must treat as a trigger for a full authoritative refetch rather than
// attempting partial repair. Applying the same event twice is a no-op the
// second time.
func Reconcile(b *domain.Board, ev domain.Event) (*domain.Board, bool, error) {
	next := b.Clone()
	switch ev.Type {
	case domain.TaskCreated, domain.TaskUpdated:
		var t domain.Task
		if err := sonic.Unmarshal(ev.Data, &t); err != nil {
			return nil, false, fmt.Errorf("%w: task payload: %v", domain.ErrUnreconcilable, err)
		}
		if t.ID == "" {
			t.ID = ev.EntityID
		}
		if t.ID == "" || t.ListID == "" {
			return nil, false, fmt.Errorf("%w: task payload missing identity", domain.ErrUnreconcilable)
		}
		di := next.ListIndex(t.ListID)
		if di < 0 {
			return nil, false, fmt.Errorf("%w: unknown list %s", domain.ErrUnreconcilable, t.ListID)
		}
		// Upsert by id: pull the task out of whichever list holds it,
		// then reinsert at the index its declared order clamps to.
		if li, ti, ok := next.TaskLocation(t.ID); ok {
			next.Lists[li].Tasks = domain.ReindexTasks(domain.RemoveAt(next.Lists[li].Tasks, ti))
		}
		dest := &next.Lists[di]
		dest.Tasks = domain.ReindexTasks(domain.InsertAt(dest.Tasks, t.Order, t))

	case domain.TaskDeleted:
		id := ev.EntityID
		if id == "" {
			return nil, false, fmt.Errorf("%w: delete without entity id", domain.ErrUnreconcilable)
		}
		// Absence means the deletion was already applied.
		if li, ti, ok := next.TaskLocation(id); ok {
			next.Lists[li].Tasks = domain.ReindexTasks(domain.RemoveAt(next.Lists[li].Tasks, ti))
		}

	case domain.TasksReordered:
		var data domain.TaskReorderData
		if err := sonic.Unmarshal(ev.Data, &data); err != nil {
			return nil, false, fmt.Errorf("%w: reorder payload: %v", domain.ErrUnreconcilable, err)
		}
		li := next.ListIndex(data.ListID)
		if li < 0 {
			return nil, false, fmt.Errorf("%w: unknown list %s", domain.ErrUnreconcilable, data.ListID)
		}
		list := &next.Lists[li]
		list.Tasks = domain.ReindexTasks(reorderByIDs(list.Tasks, data.IDs, func(t domain.Task) string { return t.ID }))

	case domain.ListCreated, domain.ListUpdated:
		var data domain.ListData
		if err := sonic.Unmarshal(ev.Data, &data); err != nil {
			return nil, false, fmt.Errorf("%w: list payload: %v", domain.ErrUnreconcilable, err)
		}
		if data.ID == "" {
			data.ID = ev.EntityID
		}
		if data.ID == "" {
			return nil, false, fmt.Errorf("%w: list payload missing identity", domain.ErrUnreconcilable)
		}
		list := domain.TaskList{ID: data.ID, EventID: data.EventID, Title: data.Title}
		if list.EventID == "" {
			list.EventID = next.EventID
		}
		// The payload never carries membership; keep the tasks the list
		// already holds locally.
		if li := next.ListIndex(data.ID); li >= 0 {
			list.Tasks = next.Lists[li].Tasks
			next.Lists = domain.RemoveAt(next.Lists, li)
		}
		next.Lists = domain.ReindexLists(domain.InsertAt(next.Lists, data.Order, list))

	case domain.ListDeleted:
		id := ev.EntityID
		if id == "" {
			return nil, false, fmt.Errorf("%w: delete without entity id", domain.ErrUnreconcilable)
		}
		if li := next.ListIndex(id); li >= 0 {
			next.Lists = domain.ReindexLists(domain.RemoveAt(next.Lists, li))
		}

	case domain.ListsReordered:
		var data domain.ListReorderData
		if err := sonic.Unmarshal(ev.Data, &data); err != nil {
			return nil, false, fmt.Errorf("%w: reorder payload: %v", domain.ErrUnreconcilable, err)
		}
		next.Lists = domain.ReindexLists(reorderByIDs(next.Lists, data.IDs, func(l domain.TaskList) string { return l.ID }))

	default:
		return next, false, nil
	}
	return next, !reflect.DeepEqual(b, next), nil
}

// reorderByIDs rebuilds items to match the given id sequence. Payload ids
// unknown locally are skipped; local items the payload omits are appended
// afterward in their prior relative order, so a truncated payload never
// loses entities.
func reorderByIDs[T any](items []T, ids []string, idOf func(T) string) []T {
	pos := make(map[string]int, len(items))
	for i, it := range items {
		pos[idOf(it)] = i
	}
	out := make([]T, 0, len(items))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		if used[id] {
			continue
		}
		if i, ok := pos[id]; ok {
			out = append(out, items[i])
			used[id] = true
		}
	}
	for _, it := range items {
		if !used[idOf(it)] {
			out = append(out, it)
		}
	}
	return out
}

// ApplyRemote folds an inbound push event into the snapshot. Events that
// cannot be applied safely discard the snapshot and refetch the board
// wholesale instead of guessing. A progress-invalidated signal only
// schedules a bounded refresh of the aggregate.
func (e *Engine) ApplyRemote(ctx context.Context, ev domain.Event) error {
	if ev.Type == domain.ProgressInvalidated {
		e.mu.Lock()
		e.scheduleProgressRefreshLocked()
		e.mu.Unlock()
		return nil
	}

	e.mu.Lock()
	next, changed, err := Reconcile(e.board, ev)
	if err != nil {
		e.mu.Unlock()
		log.WithError(err).WithFields(log.Fields{"type": ev.Type, "entity": ev.EntityID}).
			Warn("event not reconcilable, refetching board")
		if ferr := e.Refetch(ctx); ferr != nil {
			return fmt.Errorf("refetch after unreconcilable event: %w", ferr)
		}
		return err
	}
	if changed {
		e.board = next
		ttl := e.progress.TTL
		e.progress = domain.ProgressFromBoard(next)
		e.progress.TTL = ttl
		e.dropDragLocked()
	}
	e.mu.Unlock()
	return nil
}
