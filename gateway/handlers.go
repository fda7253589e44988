// Package gateway exposes board state and the live update stream over HTTP.
package gateway

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"boardsync/domain"
	"boardsync/subscription"
)

const sseDataPrefix = "data: "

// BoardSource serves board snapshots and progress aggregates.
type BoardSource interface {
	FetchBoard(ctx context.Context, eventID string) (domain.Board, error)
	FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error)
}

// Streams hands out per-board update subscriptions.
type Streams interface {
	Subscribe(eventID string, fn subscription.Handler) func()
}

// Authenticator resolves a request's Authorization header to a user id.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Register wires up the board endpoints on the given Echo instance.
func Register(e *echo.Echo, store BoardSource, streams Streams, auth Authenticator) {
	e.GET("/api/events/:eventId/board", fetchBoard(store, auth))
	e.GET("/api/events/:eventId/progress", fetchProgress(store, auth))
	e.GET("/api/events/:eventId/stream", streamBoard(store, streams, auth))
}

func authenticate(c echo.Context, auth Authenticator) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			authHeader = "Bearer " + token
		}
	}
	return auth.UserIDFromAuthHeader(authHeader)
}

func fetchBoard(store BoardSource, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		board, err := store.FetchBoard(c.Request().Context(), c.Param("eventId"))
		if err != nil {
			c.Logger().Error(err)
			return c.NoContent(http.StatusInternalServerError)
		}
		if board.ViewerParticipantID(userID) == "" {
			return c.NoContent(http.StatusForbidden)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func fetchProgress(store BoardSource, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, auth); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		snap, err := store.FetchProgress(c.Request().Context(), c.Param("eventId"))
		if err != nil {
			c.Logger().Error(err)
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"progress":   snap,
			"ttlSeconds": int(snap.TTL.Seconds()),
		})
	}
}

// streamBoard sends the current board snapshot followed by raw update
// envelopes as they arrive on the board's push channel.
func streamBoard(store BoardSource, streams Streams, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		eventID := c.Param("eventId")
		ctx := c.Request().Context()

		board, err := store.FetchBoard(ctx, eventID)
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		if board.ViewerParticipantID(userID) == "" {
			return c.NoContent(http.StatusForbidden)
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		data, err := sonic.Marshal(board)
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		if err := writeSSE(c, data); err != nil {
			c.Logger().Error(err)
			return err
		}
		flusher.Flush()

		// Slow consumers drop events rather than stall the hub; the
		// client refetches the board when it detects a gap.
		updates := make(chan []byte, 16)
		unsub := streams.Subscribe(eventID, func(ev domain.Event) {
			payload, err := sonic.Marshal(ev)
			if err != nil {
				return
			}
			select {
			case updates <- payload:
			default:
			}
		})
		defer unsub()

		for {
			select {
			case <-ctx.Done():
				return nil
			case payload := <-updates:
				if err := writeSSE(c, payload); err != nil {
					c.Logger().Error(err)
					return err
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(c echo.Context, data []byte) error {
	if _, err := c.Response().Write([]byte(sseDataPrefix)); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	_, err := c.Response().Write([]byte("\n\n"))
	return err
}
