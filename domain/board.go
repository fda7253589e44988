package domain

import "time"

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

// Valid reports whether s is one of the known workflow states.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone:
		return true
	}
	return false
}

// UserSummary carries the displayable identity of a participant's user.
type UserSummary struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Participant is a board member eligible for task assignment.
type Participant struct {
	ID      string      `json:"id"`
	BoardID string      `json:"boardId"`
	UserID  string      `json:"userId"`
	User    UserSummary `json:"user"`
}

// Task is a single unit of work on the board.
type Task struct {
	ID        string     `json:"id"`
	ListID    string     `json:"listId"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	Status    Status     `json:"status"`
	Assignee  string     `json:"assignee,omitempty"`
	StartsAt  *time.Time `json:"startsAt,omitempty"`
	DueAt     *time.Time `json:"dueAt,omitempty"`
	DependsOn []string   `json:"dependsOn,omitempty"`
	Order     int        `json:"order"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
}

// TaskList is a named, ordered column of tasks.
type TaskList struct {
	ID      string `json:"id"`
	EventID string `json:"eventId"`
	Title   string `json:"title"`
	Order   int    `json:"order"`
	Tasks   []Task `json:"tasks"`
}

// Board is the full task-planning surface for one event.
type Board struct {
	EventID      string        `json:"eventId"`
	IsOwner      bool          `json:"isOwner"`
	Lists        []TaskList    `json:"lists"`
	Participants []Participant `json:"participants"`
}

// Clone returns a full structural copy of the board. Nested list, task,
// dependency and participant slices are copied so mutating the clone never
// aliases the original.
func (b *Board) Clone() *Board {
	out := &Board{EventID: b.EventID, IsOwner: b.IsOwner}
	if b.Lists != nil {
		out.Lists = make([]TaskList, len(b.Lists))
		for i, l := range b.Lists {
			cl := l
			if l.Tasks != nil {
				cl.Tasks = make([]Task, len(l.Tasks))
				for j, t := range l.Tasks {
					ct := t
					if t.DependsOn != nil {
						ct.DependsOn = append([]string(nil), t.DependsOn...)
					}
					if t.StartsAt != nil {
						v := *t.StartsAt
						ct.StartsAt = &v
					}
					if t.DueAt != nil {
						v := *t.DueAt
						ct.DueAt = &v
					}
					cl.Tasks[j] = ct
				}
			}
			out.Lists[i] = cl
		}
	}
	if b.Participants != nil {
		out.Participants = append([]Participant(nil), b.Participants...)
	}
	return out
}

// ListIndex returns the position of the list with the given id, or -1.
func (b *Board) ListIndex(listID string) int {
	for i := range b.Lists {
		if b.Lists[i].ID == listID {
			return i
		}
	}
	return -1
}

// List returns the list with the given id, or nil.
func (b *Board) List(listID string) *TaskList {
	if i := b.ListIndex(listID); i >= 0 {
		return &b.Lists[i]
	}
	return nil
}

// TaskLocation returns the list and task indices of the task with the given
// id. ok is false when the task is not on the board.
func (b *Board) TaskLocation(taskID string) (listIdx, taskIdx int, ok bool) {
	for i := range b.Lists {
		for j := range b.Lists[i].Tasks {
			if b.Lists[i].Tasks[j].ID == taskID {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// FindTask returns the task with the given id, or nil.
func (b *Board) FindTask(taskID string) *Task {
	if i, j, ok := b.TaskLocation(taskID); ok {
		return &b.Lists[i].Tasks[j]
	}
	return nil
}

// Participant returns the participant with the given id, or nil.
func (b *Board) Participant(id string) *Participant {
	for i := range b.Participants {
		if b.Participants[i].ID == id {
			return &b.Participants[i]
		}
	}
	return nil
}

// ViewerParticipantID resolves the session user to their participant
// identity on this board. Empty when the viewer is not a participant.
func (b *Board) ViewerParticipantID(userID string) string {
	if userID == "" {
		return ""
	}
	for i := range b.Participants {
		if b.Participants[i].UserID == userID {
			return b.Participants[i].ID
		}
	}
	return ""
}

// ListOrderIDs returns the board's list ids in their current order.
func (b *Board) ListOrderIDs() []string {
	ids := make([]string, len(b.Lists))
	for i := range b.Lists {
		ids[i] = b.Lists[i].ID
	}
	return ids
}

// TaskOrderIDs returns the task ids of the given list in their current
// order, or nil when the list is unknown.
func (b *Board) TaskOrderIDs(listID string) []string {
	l := b.List(listID)
	if l == nil {
		return nil
	}
	ids := make([]string, len(l.Tasks))
	for i := range l.Tasks {
		ids[i] = l.Tasks[i].ID
	}
	return ids
}
