package engine

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// Progress returns the current derived completion aggregate.
func (e *Engine) Progress() domain.ProgressSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.Clone()
}

// ScheduleProgressRefresh requests a debounced authoritative refresh of the
// progress aggregate. Rapid consecutive requests coalesce into a single
// refetch.
func (e *Engine) ScheduleProgressRefresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduleProgressRefreshLocked()
}

// scheduleProgressRefreshLocked arms a single timer bounded between the
// refresh floor and the source-declared TTL. An already armed timer absorbs
// further requests.
func (e *Engine) scheduleProgressRefreshLocked() {
	if e.refreshTimer != nil {
		return
	}
	delay := e.progress.TTL
	if delay < e.refreshFloor {
		delay = e.refreshFloor
	}
	e.refreshTimer = time.AfterFunc(delay, func() {
		e.refreshProgress(context.Background())
	})
}

func (e *Engine) refreshProgress(ctx context.Context) {
	e.mu.Lock()
	eventID := e.board.EventID
	e.mu.Unlock()

	snap, err := e.persist.FetchProgress(ctx, eventID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshTimer = nil
	if err != nil {
		log.WithError(err).WithField("event", eventID).Warn("progress refresh failed, keeping patched aggregate")
		return
	}
	e.progress = snap.Clone()
}
