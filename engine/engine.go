package engine

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

const defaultRefreshFloor = 2 * time.Second

// Engine owns the in-memory board snapshot and is its only writer. Local
// edits enter through the commit methods, remote edits through ApplyRemote;
// everything else only reads. The syncing flag is an advisory guard that
// rejects a structural commit while another one is still awaiting its
// persistence round trip.
type Engine struct {
	persist Persistence
	userID  string

	mu      sync.Mutex
	board   *domain.Board
	drag    domain.DragContext
	hover   int
	syncing bool

	progress     domain.ProgressSnapshot
	refreshFloor time.Duration
	refreshTimer *time.Timer
}

// New creates an engine owning a private clone of the given board snapshot.
func New(persist Persistence, viewerUserID string, board *domain.Board) *Engine {
	e := &Engine{
		persist:      persist,
		userID:       viewerUserID,
		board:        board.Clone(),
		hover:        -1,
		refreshFloor: defaultRefreshFloor,
	}
	e.progress = domain.ProgressFromBoard(e.board)
	return e
}

// SetRefreshFloor overrides the minimum delay before a scheduled progress
// refresh fires.
func (e *Engine) SetRefreshFloor(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d > 0 {
		e.refreshFloor = d
	}
}

// Snapshot returns a private copy of the current board for rendering.
func (e *Engine) Snapshot() *domain.Board {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.Clone()
}

// Drag returns the current drag context.
func (e *Engine) Drag() domain.DragContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag
}

// Syncing reports whether a structural commit is in flight.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// ViewerParticipantID resolves the session user to their participant id on
// the current board.
func (e *Engine) ViewerParticipantID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.ViewerParticipantID(e.userID)
}

// CanTake reports whether the viewer may claim the given task.
func (e *Engine) CanTake(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.board.FindTask(taskID)
	if t == nil {
		return false
	}
	return e.board.CanTake(e.board.ViewerParticipantID(e.userID), *t)
}

// CanChangeStatus reports whether the viewer may transition the given
// task's status.
func (e *Engine) CanChangeStatus(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.board.FindTask(taskID)
	if t == nil {
		return false
	}
	return e.board.CanChangeStatus(e.board.ViewerParticipantID(e.userID), *t)
}

// Refetch replaces the snapshot wholesale from the authoritative source.
// Any in-progress drag is released; the progress aggregate is re-derived.
func (e *Engine) Refetch(ctx context.Context) error {
	e.mu.Lock()
	eventID := e.board.EventID
	e.mu.Unlock()

	board, err := e.persist.FetchBoard(ctx, eventID)
	if err != nil {
		log.WithError(err).WithField("event", eventID).Error("board refetch failed")
		return err
	}

	e.mu.Lock()
	ttl := e.progress.TTL
	e.board = board.Clone()
	e.drag = domain.NoDrag()
	e.hover = -1
	e.progress = domain.ProgressFromBoard(e.board)
	e.progress.TTL = ttl
	e.mu.Unlock()
	return nil
}

// dropDragLocked releases the drag context when the entity it references no
// longer exists on the board. Remote edits can delete the dragged entity
// out from under the viewer.
func (e *Engine) dropDragLocked() {
	switch e.drag.Kind {
	case domain.DragList:
		if e.board.ListIndex(e.drag.ListID) < 0 {
			e.drag = domain.NoDrag()
		}
	case domain.DragTask:
		if _, _, ok := e.board.TaskLocation(e.drag.TaskID); !ok {
			e.drag = domain.NoDrag()
		}
	}
}
