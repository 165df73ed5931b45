// Package broadcast fans transcript fragments out to live subscribers.
// One topic per session; topics for different sessions never contend.
package broadcast

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event types delivered to subscribers.
const (
	EventFragment = "fragment"
	EventClosed   = "closed"
)

// Fragment is the payload of a transcript event.
type Fragment struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	OffsetMS  int64     `json:"offset_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is what a subscriber receives. For EventClosed the Fragment carries
// only SessionID and the final Seq.
type Event struct {
	Type     string   `json:"type"`
	Fragment Fragment `json:"fragment"`
}

// Subscription is a live attachment to one session's topic. Events arrive on C
// until the topic closes or the subscriber is pruned; C is closed afterwards.
type Subscription struct {
	C chan Event

	sessionID string
	hub       *Hub
}

// SessionID reports which session this subscription is attached to.
func (s *Subscription) SessionID() string { return s.sessionID }

// Close detaches the subscription from its topic. Safe to call after the
// topic has already been closed.
func (s *Subscription) Close() { s.hub.Unsubscribe(s) }

type topic struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[*Subscription]struct{}
	closed bool
}

// Hub is the per-process transcript broadcaster.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic

	subBuffer int
	log       *logrus.Entry
}

// Option configures a Hub.
type Option func(*Hub)

// WithSubscriberBuffer sets the per-subscriber channel depth. A subscriber
// whose buffer fills is pruned rather than allowed to block the publisher.
func WithSubscriberBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.subBuffer = n
		}
	}
}

func NewHub(log *logrus.Entry, opts ...Option) *Hub {
	h := &Hub{
		topics:    make(map[string]*topic),
		subBuffer: 64,
		log:       log,
	}
	for _, o := range opts {
		o(h)
	}
	if h.log == nil {
		h.log = logrus.NewEntry(logrus.New())
	}
	return h
}

func (h *Hub) getOrCreate(sessionID string) *topic {
	h.mu.RLock()
	t, ok := h.topics[sessionID]
	h.mu.RUnlock()
	if ok {
		return t
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[sessionID]; ok {
		return t
	}
	t = &topic{subs: make(map[*Subscription]struct{})}
	h.topics[sessionID] = t
	return t
}

// Subscribe attaches a new subscriber to the session's topic, creating the
// topic if absent. Whether the session is allowed to be subscribed to at all
// (exists, not terminal) is the caller's check; the hub only does fan-out.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	t := h.getOrCreate(sessionID)

	sub := &Subscription{
		C:         make(chan Event, h.subBuffer),
		sessionID: sessionID,
		hub:       h,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		// Topic raced with terminal teardown; hand back an already-closed sub.
		close(sub.C)
		return sub
	}
	t.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches sub and closes its channel. Safe to call more than once
// and after the topic has been closed.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.RLock()
	t, ok := h.topics[sub.sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[sub]; ok {
		delete(t.subs, sub)
		close(sub.C)
	}
}

// Publish assigns the next sequence number and delivers frag to every current
// subscriber. Delivery is independent per subscriber: one that cannot keep up
// is pruned and the rest are unaffected. Publishing with zero subscribers
// still advances the counter so later joiners never see duplicate numbers.
// Returns the assigned sequence number.
func (h *Hub) Publish(sessionID string, frag Fragment) uint64 {
	t := h.getOrCreate(sessionID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return t.seq
	}

	t.seq++
	frag.SessionID = sessionID
	frag.Seq = t.seq
	ev := Event{Type: EventFragment, Fragment: frag}

	for sub := range t.subs {
		select {
		case sub.C <- ev:
		default:
			// Subscriber buffer full: drop it, never the publish.
			delete(t.subs, sub)
			close(sub.C)
			h.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"seq":        t.seq,
			}).Warn("pruned slow transcript subscriber")
		}
	}
	return t.seq
}

// CloseTopic broadcasts the final closed marker, drops every subscription, and
// destroys the topic. Called by the state machine on terminal transitions.
// No-op for unknown sessions.
func (h *Hub) CloseTopic(sessionID string) {
	h.mu.Lock()
	t, ok := h.topics[sessionID]
	if ok {
		delete(h.topics, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true

	ev := Event{Type: EventClosed, Fragment: Fragment{SessionID: sessionID, Seq: t.seq}}
	for sub := range t.subs {
		select {
		case sub.C <- ev:
		default:
		}
		delete(t.subs, sub)
		close(sub.C)
	}
}

// Topics reports the number of live topics. Used for logging and tests.
func (h *Hub) Topics() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
