// Package storage provides board persistence on Azure Table Storage plus the
// queue-to-channel bridge and the Redis progress cache.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"boardsync/domain"
)

// Storage reads board state from table storage. Entities are partitioned by
// event id, so a board load is three partition scans.
type Storage struct {
	listTable        *aztables.Client
	taskTable        *aztables.Client
	participantTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, listsTable, tasksTable, participantsTable string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		listTable:        svc.NewClient(listsTable),
		taskTable:        svc.NewClient(tasksTable),
		participantTable: svc.NewClient(participantsTable),
	}, nil
}

type listEntity struct {
	aztables.Entity
	Title string `json:"Title"`
	Order int    `json:"Order"`
}

type taskEntity struct {
	aztables.Entity
	ListID    string `json:"ListId"`
	Title     string `json:"Title"`
	Notes     string `json:"Notes"`
	Status    string `json:"Status"`
	Assignee  string `json:"Assignee"`
	StartsAt  int64  `json:"StartsAt"`
	DueAt     int64  `json:"DueAt"`
	DependsOn string `json:"DependsOn"`
	Order     int    `json:"Order"`
	CreatedAt int64  `json:"CreatedAt"`
	UpdatedAt int64  `json:"UpdatedAt"`
}

type participantEntity struct {
	aztables.Entity
	UserID    string `json:"UserId"`
	UserName  string `json:"UserName"`
	UserEmail string `json:"UserEmail"`
	AvatarURL string `json:"AvatarUrl"`
}

func decodeListEntity(data []byte) (domain.TaskList, error) {
	var ent listEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.TaskList{}, err
	}
	return domain.TaskList{
		ID:      ent.RowKey,
		EventID: ent.PartitionKey,
		Title:   ent.Title,
		Order:   ent.Order,
	}, nil
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:       ent.RowKey,
		ListID:   ent.ListID,
		Title:    ent.Title,
		Notes:    ent.Notes,
		Status:   domain.Status(ent.Status),
		Assignee: ent.Assignee,
		Order:    ent.Order,
	}
	if ent.CreatedAt != 0 {
		t.CreatedAt = time.Unix(ent.CreatedAt, 0).UTC()
	}
	if ent.UpdatedAt != 0 {
		t.UpdatedAt = time.Unix(ent.UpdatedAt, 0).UTC()
	}
	if ent.StartsAt != 0 {
		v := time.Unix(ent.StartsAt, 0).UTC()
		t.StartsAt = &v
	}
	if ent.DueAt != 0 {
		v := time.Unix(ent.DueAt, 0).UTC()
		t.DueAt = &v
	}
	if ent.DependsOn != "" {
		if err := sonic.UnmarshalString(ent.DependsOn, &t.DependsOn); err != nil {
			return domain.Task{}, err
		}
	}
	return t, nil
}

func decodeParticipantEntity(data []byte) (domain.Participant, error) {
	var ent participantEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant{
		ID:      ent.RowKey,
		BoardID: ent.PartitionKey,
		UserID:  ent.UserID,
		User:    domain.UserSummary{Name: ent.UserName, Email: ent.UserEmail, AvatarURL: ent.AvatarURL},
	}, nil
}

func (s *Storage) scan(ctx context.Context, table *aztables.Client, eventID string) ([][]byte, error) {
	filter := "PartitionKey eq '" + eventID + "'"
	pager := table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var out [][]byte
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Entities...)
	}
	return out, nil
}

// FetchBoard assembles the full board snapshot for an event. Lists and tasks
// come back densely ordered regardless of gaps in stored order values.
func (s *Storage) FetchBoard(ctx context.Context, eventID string) (domain.Board, error) {
	board := domain.Board{EventID: eventID}

	raw, err := s.scan(ctx, s.listTable, eventID)
	if err != nil {
		return domain.Board{}, err
	}
	for _, data := range raw {
		list, err := decodeListEntity(data)
		if err != nil {
			return domain.Board{}, err
		}
		list.Tasks = []domain.Task{}
		board.Lists = append(board.Lists, list)
	}
	sort.SliceStable(board.Lists, func(i, j int) bool {
		return board.Lists[i].Order < board.Lists[j].Order
	})

	raw, err = s.scan(ctx, s.taskTable, eventID)
	if err != nil {
		return domain.Board{}, err
	}
	var tasks []domain.Task
	for _, data := range raw {
		task, err := decodeTaskEntity(data)
		if err != nil {
			return domain.Board{}, err
		}
		tasks = append(tasks, task)
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	for _, t := range tasks {
		if li := board.ListIndex(t.ListID); li >= 0 {
			board.Lists[li].Tasks = append(board.Lists[li].Tasks, t)
		}
	}

	raw, err = s.scan(ctx, s.participantTable, eventID)
	if err != nil {
		return domain.Board{}, err
	}
	for _, data := range raw {
		p, err := decodeParticipantEntity(data)
		if err != nil {
			return domain.Board{}, err
		}
		board.Participants = append(board.Participants, p)
	}

	board.Lists = domain.ReindexLists(board.Lists)
	for i := range board.Lists {
		board.Lists[i].Tasks = domain.ReindexTasks(board.Lists[i].Tasks)
	}
	return board, nil
}

// FetchProgress derives the progress aggregate from the stored board.
func (s *Storage) FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error) {
	board, err := s.FetchBoard(ctx, eventID)
	if err != nil {
		return domain.ProgressSnapshot{}, err
	}
	return domain.ProgressFromBoard(&board), nil
}
