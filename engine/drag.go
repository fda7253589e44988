package engine

import (
	"context"
	"errors"

	"boardsync/domain"
)

var (
	errNoListDrag = errors.New("no list drag in progress")
	errNoTaskDrag = errors.New("no task drag in progress")
)

// GrabList starts dragging a list. Only the event owner may reorder lists,
// and never while a commit is in flight. Returns false when the grab is a
// no-op.
func (e *Engine) GrabList(listID string, mode domain.DragMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.board.IsOwner || e.syncing {
		return false
	}
	if e.board.ListIndex(listID) < 0 {
		return false
	}
	e.drag = domain.ListDrag(listID, mode)
	e.hover = -1
	return true
}

// GrabTask starts dragging a task out of its current list.
func (e *Engine) GrabTask(taskID string, mode domain.DragMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return false
	}
	li, _, ok := e.board.TaskLocation(taskID)
	if !ok {
		return false
	}
	e.drag = domain.TaskDrag(taskID, e.board.Lists[li].ID, mode)
	e.hover = -1
	return true
}

// Cancel releases the current drag context without committing.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag = domain.NoDrag()
	e.hover = -1
}

// SetHoverIndex records the insertion index computed while hovering a
// specific card. It is retained for drops landing in the middle band of a
// list's empty space.
func (e *Engine) SetHoverIndex(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hover = index
}

// ResolveDropIndex maps a pointer drop on a list's empty space to an
// insertion index using the pointer's vertical offset ratio within the
// list's content box.
func (e *Engine) ResolveDropIndex(ratio float64, listLen int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return DropIndexForOffset(ratio, e.hover, listLen)
}

// DropIndexForOffset resolves an insertion index from the vertical offset
// ratio of a pointer hovering a list rather than a specific card. The top
// band maps to the front, the bottom band to the end, and the middle band
// retains the last explicitly computed hover index so the target does not
// flicker while the pointer crosses the middle of the list.
func DropIndexForOffset(ratio float64, lastHover, listLen int) int {
	switch {
	case ratio <= 0.25:
		return 0
	case ratio >= 0.75:
		return listLen
	}
	if lastHover < 0 {
		return listLen
	}
	return lastHover
}

// MoveListBy shifts the dragged list by delta positions (keyboard mode
// arrow-left/right).
func (e *Engine) MoveListBy(ctx context.Context, delta int) error {
	e.mu.Lock()
	if e.drag.Kind != domain.DragList {
		e.mu.Unlock()
		return errNoListDrag
	}
	cur := e.board.ListIndex(e.drag.ListID)
	e.mu.Unlock()
	if cur < 0 {
		return domain.ErrNotFound
	}
	return e.CommitListReorder(ctx, cur+delta)
}

// MoveTaskBy shifts the dragged task by delta slots within its current list
// (keyboard mode arrow-up/down).
func (e *Engine) MoveTaskBy(ctx context.Context, delta int) error {
	e.mu.Lock()
	if e.drag.Kind != domain.DragTask {
		e.mu.Unlock()
		return errNoTaskDrag
	}
	li, ti, ok := e.board.TaskLocation(e.drag.TaskID)
	if !ok {
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	listID := e.board.Lists[li].ID
	e.mu.Unlock()
	// DropTask destinations are gap indices counted before the task leaves
	// its slot, so a downward step must aim past the slot it vacates.
	dest := ti + delta
	if delta > 0 {
		dest++
	}
	return e.DropTask(ctx, listID, dest)
}

// MoveTaskAcross moves the dragged task to the end of the neighboring list
// in the given direction (keyboard mode modifier+arrow-left/right). Moving
// past the board edge is a no-op.
func (e *Engine) MoveTaskAcross(ctx context.Context, dir int) error {
	e.mu.Lock()
	if e.drag.Kind != domain.DragTask {
		e.mu.Unlock()
		return errNoTaskDrag
	}
	li, _, ok := e.board.TaskLocation(e.drag.TaskID)
	if !ok {
		e.drag = domain.NoDrag()
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	ni := li + dir
	if ni < 0 || ni >= len(e.board.Lists) {
		e.mu.Unlock()
		return nil
	}
	destID := e.board.Lists[ni].ID
	destIndex := len(e.board.Lists[ni].Tasks)
	e.mu.Unlock()
	return e.DropTask(ctx, destID, destIndex)
}
