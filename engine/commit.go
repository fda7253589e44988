package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// CommitListReorder moves the dragged list to targetIndex, persists the full
// ordered id sequence, and restores the pre-mutation snapshot when
// persistence fails. Dropping a list onto its own position is a no-op.
func (e *Engine) CommitListReorder(ctx context.Context, targetIndex int) error {
	e.mu.Lock()
	if e.drag.Kind != domain.DragList {
		e.mu.Unlock()
		return errNoListDrag
	}
	cur := e.board.ListIndex(e.drag.ListID)
	if cur < 0 {
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex > len(e.board.Lists)-1 {
		targetIndex = len(e.board.Lists) - 1
	}
	if targetIndex == cur {
		if e.drag.Mode == domain.DragModePointer {
			e.drag = domain.NoDrag()
		}
		e.mu.Unlock()
		return nil
	}
	if e.syncing {
		e.mu.Unlock()
		return domain.ErrSyncInFlight
	}
	prev := e.board.Clone()
	e.board.Lists = domain.ReindexLists(domain.MoveElement(e.board.Lists, cur, targetIndex))
	ids := e.board.ListOrderIDs()
	eventID := e.board.EventID
	mode := e.drag.Mode
	e.syncing = true
	e.mu.Unlock()

	err := e.persist.ReorderLists(ctx, eventID, ids)

	e.mu.Lock()
	e.syncing = false
	if err != nil {
		e.board = prev
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		log.WithError(err).WithField("event", eventID).Error("list reorder rolled back")
		return fmt.Errorf("reorder lists: %w", err)
	}
	// Keyboard drags stay armed so consecutive key presses chain without
	// re-grabbing; pointer drags end at release.
	if mode == domain.DragModePointer {
		e.drag = domain.NoDrag()
	}
	e.mu.Unlock()
	return nil
}

// DropTask commits the dragged task to destIndex of the list with
// destListID. A move within the source list persists a single reorder; a
// cross-list move persists the list reassignment and both reorders, each
// step compensated on failure.
func (e *Engine) DropTask(ctx context.Context, destListID string, destIndex int) error {
	e.mu.Lock()
	if e.drag.Kind != domain.DragTask {
		e.mu.Unlock()
		return errNoTaskDrag
	}
	si, ti, ok := e.board.TaskLocation(e.drag.TaskID)
	if !ok {
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	srcListID := e.board.Lists[si].ID
	di := e.board.ListIndex(destListID)
	if di < 0 {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if e.syncing {
		e.mu.Unlock()
		return domain.ErrSyncInFlight
	}
	if srcListID == destListID {
		return e.commitTaskSameList(ctx, si, ti, destIndex)
	}
	return e.commitTaskCrossList(ctx, si, ti, di, destIndex)
}

// commitTaskSameList reorders within a single list. The caller holds the
// lock. Destination indices past the source slot shift down by one once the
// task is removed.
func (e *Engine) commitTaskSameList(ctx context.Context, li, ti, destIndex int) error {
	list := &e.board.Lists[li]
	if destIndex > ti {
		destIndex--
	}
	if destIndex < 0 {
		destIndex = 0
	}
	if destIndex > len(list.Tasks)-1 {
		destIndex = len(list.Tasks) - 1
	}
	if destIndex == ti {
		if e.drag.Mode == domain.DragModePointer {
			e.drag = domain.NoDrag()
		}
		e.mu.Unlock()
		return nil
	}
	prev := e.board.Clone()
	list.Tasks = domain.ReindexTasks(domain.MoveElement(list.Tasks, ti, destIndex))
	listID := list.ID
	ids := e.board.TaskOrderIDs(listID)
	mode := e.drag.Mode
	e.syncing = true
	e.mu.Unlock()

	err := e.persist.ReorderTasks(ctx, listID, ids)

	e.mu.Lock()
	e.syncing = false
	if err != nil {
		e.board = prev
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		log.WithError(err).WithField("list", listID).Error("task reorder rolled back")
		return fmt.Errorf("reorder tasks: %w", err)
	}
	if mode == domain.DragModePointer {
		e.drag = domain.NoDrag()
	}
	e.mu.Unlock()
	return nil
}

// commitTaskCrossList moves the task from the source list into the
// destination list. The caller holds the lock. Persistence happens in three
// steps: reassign the owning list, reorder the destination, reorder the
// source when it still has tasks. Earlier steps are compensated with the
// captured pre-state order when a later one fails; when compensation itself
// fails the snapshot can no longer be trusted and the board is refetched
// wholesale.
func (e *Engine) commitTaskCrossList(ctx context.Context, si, ti, di, destIndex int) error {
	src := &e.board.Lists[si]
	dest := &e.board.Lists[di]
	srcListID := src.ID
	destListID := dest.ID
	taskID := e.drag.TaskID

	prev := e.board.Clone()
	prevDestIDs := e.board.TaskOrderIDs(destListID)

	task := src.Tasks[ti]
	src.Tasks = domain.ReindexTasks(domain.RemoveAt(src.Tasks, ti))
	task.ListID = destListID
	dest.Tasks = domain.ReindexTasks(domain.InsertAt(dest.Tasks, destIndex, task))

	destIDs := e.board.TaskOrderIDs(destListID)
	srcIDs := e.board.TaskOrderIDs(srcListID)
	mode := e.drag.Mode
	e.syncing = true
	e.mu.Unlock()

	err, compFailed := e.persistCrossListMove(ctx, taskID, srcListID, destListID, prevDestIDs, destIDs, srcIDs)

	e.mu.Lock()
	e.syncing = false
	switch {
	case err == nil:
		// The viewer may have released the drag while the move was on the
		// wire; only touch a drag context that is still ours.
		if e.drag.Kind == domain.DragTask && e.drag.TaskID == taskID {
			if mode == domain.DragModePointer {
				e.drag = domain.NoDrag()
			} else {
				// Re-arm against the task's new source list.
				e.drag = domain.TaskDrag(taskID, destListID, mode)
			}
		}
		e.mu.Unlock()
		return nil
	case compFailed:
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		log.WithError(err).WithFields(log.Fields{"task": taskID, "from": srcListID, "to": destListID}).
			Error("cross-list compensation failed, refetching board")
		if ferr := e.Refetch(ctx); ferr != nil {
			return fmt.Errorf("move task: %w (refetch after failed compensation also failed: %v)", err, ferr)
		}
		return fmt.Errorf("move task: %w", err)
	default:
		e.board = prev
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		log.WithError(err).WithFields(log.Fields{"task": taskID, "from": srcListID, "to": destListID}).
			Error("cross-list move rolled back")
		return fmt.Errorf("move task: %w", err)
	}
}

func (e *Engine) persistCrossListMove(ctx context.Context, taskID, srcListID, destListID string, prevDestIDs, destIDs, srcIDs []string) (err error, compFailed bool) {
	if err := e.persist.MoveTask(ctx, taskID, destListID); err != nil {
		return err, false
	}
	if err := e.persist.ReorderTasks(ctx, destListID, destIDs); err != nil {
		if cerr := e.persist.MoveTask(ctx, taskID, srcListID); cerr != nil {
			return err, true
		}
		return err, false
	}
	if len(srcIDs) > 0 {
		if err := e.persist.ReorderTasks(ctx, srcListID, srcIDs); err != nil {
			if cerr := e.persist.ReorderTasks(ctx, destListID, prevDestIDs); cerr != nil {
				return err, true
			}
			if cerr := e.persist.MoveTask(ctx, taskID, srcListID); cerr != nil {
				return err, true
			}
			return err, false
		}
	}
	return nil, false
}

// ClaimTask optimistically assigns the task to the viewer and persists the
// claim. Losing the race to another claimant rolls the assignment back and
// surfaces domain.ErrAlreadyAssigned.
func (e *Engine) ClaimTask(ctx context.Context, taskID string) error {
	e.mu.Lock()
	viewerPID := e.board.ViewerParticipantID(e.userID)
	t := e.board.FindTask(taskID)
	if t == nil {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if !e.board.CanTake(viewerPID, *t) {
		e.mu.Unlock()
		if t.Assignee != "" {
			return domain.ErrAlreadyAssigned
		}
		return domain.ErrPermissionDenied
	}
	t.Assignee = viewerPID
	e.mu.Unlock()

	confirmed, err := e.persist.ClaimTask(ctx, taskID, viewerPID)

	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.board.FindTask(taskID)
	if err != nil {
		// Only undo our own optimistic write; a remote event may have
		// already replaced the task.
		if cur != nil && cur.Assignee == viewerPID {
			cur.Assignee = ""
		}
		if errors.Is(err, domain.ErrAlreadyAssigned) {
			return err
		}
		return fmt.Errorf("claim task: %w", err)
	}
	if cur != nil {
		cur.Assignee = confirmed.Assignee
		cur.UpdatedAt = confirmed.UpdatedAt
	}
	return nil
}

// SetTaskStatus transitions the task's workflow status. Permission and
// dependency violations are rejected before any network call; a done
// transition requires every dependency to already be done. The progress
// aggregate is patched optimistically and rolled back together with the
// status on persistence failure.
func (e *Engine) SetTaskStatus(ctx context.Context, taskID string, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	e.mu.Lock()
	viewerPID := e.board.ViewerParticipantID(e.userID)
	t := e.board.FindTask(taskID)
	if t == nil {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if !e.board.CanChangeStatus(viewerPID, *t) {
		e.mu.Unlock()
		return domain.ErrPermissionDenied
	}
	if status == domain.StatusDone {
		if blocked := e.board.BlockedDependencies(*t); len(blocked) > 0 {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrDependencyIncomplete, strings.Join(blocked, ", "))
		}
	}
	if t.Status == status {
		e.mu.Unlock()
		return nil
	}
	prevStatus := t.Status
	prevProgress := e.progress.Clone()
	listID := t.ListID
	t.Status = status
	e.progress.ApplyTransition(listID, prevStatus, status)
	e.mu.Unlock()

	confirmed, err := e.persist.SetTaskStatus(ctx, taskID, status)

	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.board.FindTask(taskID)
	if err != nil {
		if cur != nil && cur.Status == status {
			cur.Status = prevStatus
		}
		e.progress = prevProgress
		return fmt.Errorf("set status: %w", err)
	}
	if cur != nil {
		cur.Status = confirmed.Status
		cur.UpdatedAt = confirmed.UpdatedAt
	}
	e.scheduleProgressRefreshLocked()
	return nil
}

// CreateList persists a new list and appends the confirmed entity.
func (e *Engine) CreateList(ctx context.Context, title string) error {
	e.mu.Lock()
	if !e.board.IsOwner {
		e.mu.Unlock()
		return domain.ErrPermissionDenied
	}
	eventID := e.board.EventID
	e.mu.Unlock()

	list, err := e.persist.CreateList(ctx, eventID, title)
	if err != nil {
		return fmt.Errorf("create list: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.board.ListIndex(list.ID) >= 0 {
		// The push channel can deliver the creation before the call
		// returns.
		return nil
	}
	e.board.Lists = domain.ReindexLists(append(e.board.Lists, list))
	return nil
}

// CreateTask persists a new task and appends the confirmed entity to its
// list.
func (e *Engine) CreateTask(ctx context.Context, draft domain.Task) error {
	task, err := e.persist.CreateTask(ctx, draft)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, _, ok := e.board.TaskLocation(task.ID); ok {
		return nil
	}
	list := e.board.List(task.ListID)
	if list == nil {
		return nil
	}
	list.Tasks = domain.ReindexTasks(append(list.Tasks, task))
	e.progress.Counts.Todo++
	if c, ok := e.progress.PerList[list.ID]; ok {
		c.Todo++
		e.progress.PerList[list.ID] = c
	}
	return nil
}

// UpdateTask applies edited task fields optimistically and persists them,
// restoring the previous values on failure. Ordering and status are not
// touched here; those travel through their own commit paths.
func (e *Engine) UpdateTask(ctx context.Context, edited domain.Task) error {
	e.mu.Lock()
	t := e.board.FindTask(edited.ID)
	if t == nil {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	prev := *t
	t.Title = edited.Title
	t.Notes = edited.Notes
	t.StartsAt = edited.StartsAt
	t.DueAt = edited.DueAt
	t.DependsOn = append([]string(nil), edited.DependsOn...)
	e.mu.Unlock()

	confirmed, err := e.persist.UpdateTask(ctx, edited)

	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.board.FindTask(edited.ID)
	if err != nil {
		if cur != nil {
			cur.Title = prev.Title
			cur.Notes = prev.Notes
			cur.StartsAt = prev.StartsAt
			cur.DueAt = prev.DueAt
			cur.DependsOn = prev.DependsOn
		}
		return fmt.Errorf("update task: %w", err)
	}
	if cur != nil {
		cur.Title = confirmed.Title
		cur.Notes = confirmed.Notes
		cur.StartsAt = confirmed.StartsAt
		cur.DueAt = confirmed.DueAt
		cur.DependsOn = confirmed.DependsOn
		cur.UpdatedAt = confirmed.UpdatedAt
	}
	return nil
}

// DeleteTask removes the task optimistically and persists the deletion,
// restoring the snapshot on failure.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	e.mu.Lock()
	li, ti, ok := e.board.TaskLocation(taskID)
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	prev := e.board.Clone()
	prevProgress := e.progress.Clone()
	e.board.Lists[li].Tasks = domain.ReindexTasks(domain.RemoveAt(e.board.Lists[li].Tasks, ti))
	ttl := e.progress.TTL
	e.progress = domain.ProgressFromBoard(e.board)
	e.progress.TTL = ttl
	e.mu.Unlock()

	err := e.persist.DeleteTask(ctx, taskID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.board = prev
		e.progress = prevProgress
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// DeleteList removes an empty-or-not list optimistically and persists the
// deletion, restoring the snapshot on failure.
func (e *Engine) DeleteList(ctx context.Context, listID string) error {
	e.mu.Lock()
	if !e.board.IsOwner {
		e.mu.Unlock()
		return domain.ErrPermissionDenied
	}
	li := e.board.ListIndex(listID)
	if li < 0 {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	prev := e.board.Clone()
	prevProgress := e.progress.Clone()
	e.board.Lists = domain.ReindexLists(domain.RemoveAt(e.board.Lists, li))
	ttl := e.progress.TTL
	e.progress = domain.ProgressFromBoard(e.board)
	e.progress.TTL = ttl
	e.mu.Unlock()

	err := e.persist.DeleteList(ctx, listID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.board = prev
		e.progress = prevProgress
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}
