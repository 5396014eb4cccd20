// Package notify delivers payment events to connected merchant sessions.
package notify

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slog"
)

const EventPayed = "payed"

// Scope selects which subscribers receive an event.
type Scope string

const (
	// ScopeBroadcast delivers every event to every connected session.
	ScopeBroadcast Scope = "broadcast"
	// ScopeSession delivers an event only to the session it is keyed to.
	ScopeSession Scope = "session"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeBroadcast:
		return ScopeBroadcast, nil
	case ScopeSession:
		return ScopeSession, nil
	default:
		return "", fmt.Errorf("unknown notify scope %q", s)
	}
}

// Event is one emission. SessionID is the merchant session the event
// originates from.
type Event struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload"`
}

type subscriber struct {
	sessionID string
	ch        chan Event
}

// Hub is the process-wide publish channel. Subscribing marks a session as
// connected; its channel is closed on cancel or when the hub closes.
type Hub struct {
	scope  Scope
	buffer int
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub(logger *slog.Logger, scope Scope, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if scope == "" {
		scope = ScopeBroadcast
	}
	return &Hub{
		scope:  scope,
		buffer: buffer,
		logger: logger.With(slog.String("component", "notify")),
		subs:   make(map[*subscriber]struct{}),
	}
}

// Subscribe connects sessionID. The returned cancel func is idempotent.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscriber{sessionID: sessionID, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
		})
	}
}

// Publish never blocks. A subscriber whose buffer is full misses the event.
// It returns the number of subscribers the event was delivered to.
func (h *Hub) Publish(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}

	delivered := 0
	for sub := range h.subs {
		if h.scope == ScopeSession && sub.sessionID != ev.SessionID {
			continue
		}
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				slog.String("event", ev.Name),
				slog.String("session", sub.sessionID))
		}
	}
	h.logger.Info("event published",
		slog.String("event", ev.Name),
		slog.String("session", ev.SessionID),
		slog.String("scope", string(h.scope)),
		slog.Int("delivered", delivered))
	return delivered
}

// Connected returns the number of subscribed sessions.
func (h *Hub) Connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Publish after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}
