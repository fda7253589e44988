package domain

// DragMode distinguishes how a drag interaction is driven.
type DragMode int

const (
	// DragModePointer ends at gesture release.
	DragModePointer DragMode = iota
	// DragModeKeyboard persists across discrete moves until released.
	DragModeKeyboard
)

// DragKind tags the variant carried by a DragContext.
type DragKind int

const (
	DragNone DragKind = iota
	DragList
	DragTask
)

// DragContext is the transient state of an in-progress drag. It is a tagged
// union: either nothing, a list being moved, or a task being moved out of a
// known source list, so that combinations like a task drag without a source
// list are unrepresentable.
type DragContext struct {
	Kind   DragKind
	Mode   DragMode
	ListID string // the dragged list, or the task's source list
	TaskID string
}

// NoDrag is the idle drag state.
func NoDrag() DragContext { return DragContext{} }

// ListDrag starts a drag context for the given list.
func ListDrag(listID string, mode DragMode) DragContext {
	return DragContext{Kind: DragList, Mode: mode, ListID: listID}
}

// TaskDrag starts a drag context for the given task and its source list.
func TaskDrag(taskID, sourceListID string, mode DragMode) DragContext {
	return DragContext{Kind: DragTask, Mode: mode, ListID: sourceListID, TaskID: taskID}
}

// Active reports whether a drag is in progress.
func (d DragContext) Active() bool { return d.Kind != DragNone }
