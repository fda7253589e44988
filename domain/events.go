package domain

import "github.com/bytedance/sonic"

// Event types delivered over the push channel.
const (
	TaskCreated    = "task-created"
	TaskUpdated    = "task-updated"
	TaskDeleted    = "task-deleted"
	TasksReordered = "tasks-reordered"
	ListCreated    = "list-created"
	ListUpdated    = "list-updated"
	ListDeleted    = "list-deleted"
	ListsReordered = "lists-reordered"

	// ProgressInvalidated signals that the authoritative progress
	// aggregate changed and cached copies should be refreshed.
	ProgressInvalidated = "progress-invalidated"
)

// Event is a push-channel envelope describing a change made by another
// viewer. Delivery is unordered and may be duplicated or dropped.
type Event struct {
	ID         string                 `json:"id"`
	BoardID    string                 `json:"boardId"`
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	Type       string                 `json:"type"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Time       int64                  `json:"time"`
	UserID     string                 `json:"userId"`
}

// TaskReorderData is the payload of a tasks-reordered event. IDs carries the
// list's full intended task order; payload order values elsewhere are
// advisory and position is re-derived locally.
type TaskReorderData struct {
	ListID string   `json:"listId"`
	IDs    []string `json:"ids"`
}

// ListReorderData is the payload of a lists-reordered event.
type ListReorderData struct {
	EventID string   `json:"eventId"`
	IDs     []string `json:"ids"`
}

// ListData is the payload of list-created and list-updated events. It never
// carries task membership; local task state is preserved on upsert.
type ListData struct {
	ID      string `json:"id"`
	EventID string `json:"eventId"`
	Title   string `json:"title"`
	Order   int    `json:"order"`
}
