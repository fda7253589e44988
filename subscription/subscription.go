// Package subscription delivers remote board updates from the push channel
// to registered handlers.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// ChannelPrefix is the pub/sub channel namespace for board update events.
const ChannelPrefix = "board-updates:"

// Handler consumes a decoded remote event.
type Handler func(ev domain.Event)

// Subscriber listens on a board's update channel and fans decoded events out
// to registered handlers. Handlers run on the subscriber goroutine, in the
// order the channel delivered the events.
type Subscriber struct {
	rc      *redis.Client
	eventID string

	mu        sync.Mutex
	nextID    int
	handlers  map[int]Handler
	connected bool
}

// New creates a subscriber for the given board.
func New(rc *redis.Client, eventID string) *Subscriber {
	return &Subscriber{
		rc:       rc,
		eventID:  eventID,
		handlers: make(map[int]Handler),
	}
}

// Subscribe registers a handler and returns a function that removes it.
func (s *Subscriber) Subscribe(h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// Connected reports whether the pub/sub channel is currently established.
// The flag is advisory: events may still arrive shortly after it turns false.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Run listens until ctx is cancelled, reconnecting when the channel drops.
func (s *Subscriber) Run(ctx context.Context) {
	channel := ChannelPrefix + s.eventID
	for {
		sub := s.rc.Subscribe(ctx, channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("subscribe to update channel failed, retrying")
			time.Sleep(time.Second)
			continue
		}
		s.setConnected(true)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				s.setConnected(false)
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev domain.Event
				if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
					log.WithError(err).Error("unable to parse board update")
					continue
				}
				s.dispatch(ev)
			}
		}
		s.setConnected(false)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func (s *Subscriber) dispatch(ev domain.Event) {
	s.mu.Lock()
	hs := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		hs = append(hs, h)
	}
	s.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}
