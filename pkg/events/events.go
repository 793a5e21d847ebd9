// Package events is the in-process fan-out for tree-change
// notifications. The editing service publishes an event after every
// completed mutation; websocket watchers subscribe to mirror the tree
// live. Delivery is best-effort: a subscriber that stops draining its
// channel loses events rather than stalling mutations.
package events

import (
	"sync"

	"github.com/plugboard/plugboard/pkg/models"
)

// Type discriminates tree-change events.
type Type string

const (
	PluginAdded        Type = "plugin-added"
	PluginMoved        Type = "plugin-moved"
	PluginDeleted      Type = "plugin-deleted"
	PlaceholderCleared Type = "placeholder-cleared"
	TreeImported       Type = "tree-imported"
)

// Event describes one completed mutation. Order carries the root-level
// id sequence of the affected scope after the mutation, when the event
// concerns a single scope.
type Event struct {
	Type          Type                 `json:"type"`
	PlaceholderID models.PlaceholderID `json:"placeholder_id"`
	Language      string               `json:"language,omitempty"`
	PluginID      *models.PluginID     `json:"plugin_id,omitempty"`
	Order         []models.PluginID    `json:"order,omitempty"`
}

// subscriberBuffer bounds how far a subscriber may lag before it starts
// losing events.
const subscriberBuffer = 16

// Subscription is one subscriber's view of the hub. Receive from C;
// Close when done. C is closed by Close.
type Subscription struct {
	C   <-chan Event
	c   chan Event
	hub *Hub
}

// Close detaches the subscription from the hub and closes C.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub broadcasts events to all current subscribers. Safe for concurrent
// use; the zero value is not usable, construct with NewHub.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber and returns its subscription.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{c: make(chan Event, subscriberBuffer), hub: h}
	sub.C = sub.c
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.c)
}

// Publish delivers the event to every subscriber that has buffer room
// and silently skips the rest.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.c <- event:
		default:
		}
	}
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
