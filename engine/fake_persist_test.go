package engine

import (
	"context"
	"fmt"
	"sync"

	"boardsync/domain"
)

// fakePersist records persistence calls and fails the ones listed in fail,
// keyed by "op" or "op:target".
type fakePersist struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error

	board           domain.Board
	boardFetches    int
	progress        domain.ProgressSnapshot
	progressFetches int

	claimResult  domain.Task
	statusResult domain.Task

	// inCall, if set, is invoked while a reorder call is "on the wire".
	inCall func()
}

func (f *fakePersist) record(op, target string, detail ...string) error {
	f.mu.Lock()
	entry := op
	if target != "" {
		entry += " " + target
	}
	for _, d := range detail {
		entry += " " + d
	}
	f.calls = append(f.calls, entry)
	err := f.fail[op+":"+target]
	if err == nil {
		err = f.fail[op]
	}
	f.mu.Unlock()
	return err
}

func (f *fakePersist) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePersist) CreateList(ctx context.Context, eventID, title string) (domain.TaskList, error) {
	err := f.record("createList", eventID, title)
	return domain.TaskList{ID: "new-list", EventID: eventID, Title: title}, err
}

func (f *fakePersist) DeleteList(ctx context.Context, listID string) error {
	return f.record("deleteList", listID)
}

func (f *fakePersist) CreateTask(ctx context.Context, draft domain.Task) (domain.Task, error) {
	err := f.record("createTask", draft.ListID, draft.Title)
	draft.ID = "new-task"
	draft.Status = domain.StatusTodo
	return draft, err
}

func (f *fakePersist) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	return task, f.record("updateTask", task.ID)
}

func (f *fakePersist) DeleteTask(ctx context.Context, taskID string) error {
	return f.record("deleteTask", taskID)
}

func (f *fakePersist) MoveTask(ctx context.Context, taskID, listID string) error {
	return f.record("moveTask", listID, taskID)
}

func (f *fakePersist) ReorderTasks(ctx context.Context, listID string, ids []string) error {
	if f.inCall != nil {
		f.inCall()
	}
	return f.record("reorderTasks", listID, fmt.Sprintf("%v", ids))
}

func (f *fakePersist) ReorderLists(ctx context.Context, eventID string, ids []string) error {
	if f.inCall != nil {
		f.inCall()
	}
	return f.record("reorderLists", eventID, fmt.Sprintf("%v", ids))
}

func (f *fakePersist) ClaimTask(ctx context.Context, taskID, participantID string) (domain.Task, error) {
	err := f.record("claimTask", taskID, participantID)
	if err != nil {
		return domain.Task{}, err
	}
	res := f.claimResult
	if res.ID == "" {
		res = domain.Task{ID: taskID, Assignee: participantID}
	}
	return res, nil
}

func (f *fakePersist) SetTaskStatus(ctx context.Context, taskID string, status domain.Status) (domain.Task, error) {
	err := f.record("setStatus", taskID, string(status))
	if err != nil {
		return domain.Task{}, err
	}
	res := f.statusResult
	if res.ID == "" {
		res = domain.Task{ID: taskID, Status: status}
	}
	return res, nil
}

func (f *fakePersist) FetchBoard(ctx context.Context, eventID string) (domain.Board, error) {
	err := f.record("fetchBoard", eventID)
	f.mu.Lock()
	f.boardFetches++
	f.mu.Unlock()
	return *f.board.Clone(), err
}

func (f *fakePersist) FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error) {
	err := f.record("fetchProgress", eventID)
	f.mu.Lock()
	f.progressFetches++
	f.mu.Unlock()
	return f.progress.Clone(), err
}

// boardFixture is the canonical two-list scenario used across engine tests:
// Backlog holds t1 and t2, Doing is empty, the viewer u1 owns the event.
func boardFixture() *domain.Board {
	return &domain.Board{
		EventID: "ev1",
		IsOwner: true,
		Lists: []domain.TaskList{
			{ID: "backlog", EventID: "ev1", Title: "Backlog", Order: 0, Tasks: []domain.Task{
				{ID: "t1", ListID: "backlog", Title: "first", Status: domain.StatusTodo, Order: 0},
				{ID: "t2", ListID: "backlog", Title: "second", Status: domain.StatusDoing, Order: 1},
			}},
			{ID: "doing", EventID: "ev1", Title: "Doing", Order: 1},
		},
		Participants: []domain.Participant{
			{ID: "p1", BoardID: "ev1", UserID: "u1", User: domain.UserSummary{Name: "Ann", Email: "ann@example.com"}},
			{ID: "p2", BoardID: "ev1", UserID: "u2", User: domain.UserSummary{Name: "Bo", Email: "bo@example.com"}},
		},
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
