// Package client implements the board persistence API over HTTP.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

const requestBodyMaxSize = 256 * 1024 // 256 KiB

// Client talks to the board persistence service. Server error codes are
// mapped onto the domain error taxonomy so callers can branch with
// errors.Is.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New creates a client for the given base URL. token, when non-empty, is
// sent as a bearer token on every request.
func New(base, token string) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(resp.Body, requestBodyMaxSize))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(method, path string, resp *http.Response) error {
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyMaxSize))
	if err := sonic.Unmarshal(data, &body); err != nil {
		body = errorResponse{}
	}
	code := body.Code
	if code == "" {
		code = body.Error
	}
	switch code {
	case "permission-denied":
		return domain.ErrPermissionDenied
	case "already-assigned":
		return domain.ErrAlreadyAssigned
	case "dependency-incomplete":
		return domain.ErrDependencyIncomplete
	case "not-found":
		return domain.ErrNotFound
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized:
		return domain.ErrPermissionDenied
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrAlreadyAssigned
	}
	log.WithFields(log.Fields{"method": method, "path": path, "status": resp.StatusCode}).
		Debug("persistence call failed")
	if body.Error != "" {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
}

func (c *Client) CreateList(ctx context.Context, eventID, title string) (domain.TaskList, error) {
	var out domain.TaskList
	err := c.do(ctx, http.MethodPost, "/api/events/"+eventID+"/lists", map[string]string{"title": title}, &out)
	return out, err
}

func (c *Client) DeleteList(ctx context.Context, listID string) error {
	return c.do(ctx, http.MethodDelete, "/api/lists/"+listID, nil, nil)
}

func (c *Client) CreateTask(ctx context.Context, draft domain.Task) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPost, "/api/lists/"+draft.ListID+"/tasks", draft, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPatch, "/api/tasks/"+task.ID, task, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID, nil, nil)
}

func (c *Client) MoveTask(ctx context.Context, taskID, listID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/move", map[string]string{"listId": listID}, nil)
}

func (c *Client) ReorderTasks(ctx context.Context, listID string, ids []string) error {
	return c.do(ctx, http.MethodPut, "/api/lists/"+listID+"/order", reorderRequest{IDs: ids}, nil)
}

func (c *Client) ReorderLists(ctx context.Context, eventID string, ids []string) error {
	return c.do(ctx, http.MethodPut, "/api/events/"+eventID+"/listorder", reorderRequest{IDs: ids}, nil)
}

func (c *Client) ClaimTask(ctx context.Context, taskID, participantID string) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/claim", map[string]string{"participantId": participantID}, &out)
	return out, err
}

func (c *Client) SetTaskStatus(ctx context.Context, taskID string, status domain.Status) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPut, "/api/tasks/"+taskID+"/status", map[string]string{"status": string(status)}, &out)
	return out, err
}

func (c *Client) FetchBoard(ctx context.Context, eventID string) (domain.Board, error) {
	var out domain.Board
	err := c.do(ctx, http.MethodGet, "/api/events/"+eventID+"/board", nil, &out)
	return out, err
}

func (c *Client) FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error) {
	var out progressResponse
	if err := c.do(ctx, http.MethodGet, "/api/events/"+eventID+"/progress", nil, &out); err != nil {
		return domain.ProgressSnapshot{}, err
	}
	snap := out.Snapshot
	snap.TTL = time.Duration(out.TTLSeconds) * time.Second
	return snap, nil
}

type progressResponse struct {
	Snapshot   domain.ProgressSnapshot `json:"progress"`
	TTLSeconds int                     `json:"ttlSeconds"`
}
