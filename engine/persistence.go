package engine

import (
	"context"

	"boardsync/domain"
)

// Persistence abstracts the board persistence API for the engine. Each call
// either returns the confirmed entity or fails with a distinguishable error:
// domain.ErrPermissionDenied, domain.ErrAlreadyAssigned,
// domain.ErrDependencyIncomplete, domain.ErrNotFound, or a transport error.
type Persistence interface {
	CreateList(ctx context.Context, eventID, title string) (domain.TaskList, error)
	DeleteList(ctx context.Context, listID string) error
	CreateTask(ctx context.Context, draft domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	// MoveTask reassigns the task's owning list.
	MoveTask(ctx context.Context, taskID, listID string) error
	// ReorderTasks persists a list's full ordered task id sequence.
	ReorderTasks(ctx context.Context, listID string, ids []string) error
	// ReorderLists persists a board's full ordered list id sequence.
	ReorderLists(ctx context.Context, eventID string, ids []string) error
	ClaimTask(ctx context.Context, taskID, participantID string) (domain.Task, error)
	SetTaskStatus(ctx context.Context, taskID string, status domain.Status) (domain.Task, error)
	FetchBoard(ctx context.Context, eventID string) (domain.Board, error)
	FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error)
}
