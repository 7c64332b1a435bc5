package websocket

import (
	"sort"
	"sync"

	"socialize/internal/metrics"
)

// Registry maps a user id to the one connection currently representing that
// user. Mutations come from the hub goroutine; reads may come from HTTP
// handlers, hence the lock.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]*Client
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[int64]*Client)}
}

// Add records client as the connection for userID. An existing entry is
// replaced and returned so the caller can tell a reconnect from a join.
func (r *Registry) Add(userID int64, client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.byUser[userID]
	r.byUser[userID] = client
	metrics.PresenceEntries.Set(float64(len(r.byUser)))
	if previous == client {
		return nil
	}
	return previous
}

// Remove deletes the entry held by exactly this client. A superseded client
// owns no entry, so removing it leaves the newer connection in place.
func (r *Registry) Remove(client *Client) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, c := range r.byUser {
		if c == client {
			delete(r.byUser, userID)
			metrics.PresenceEntries.Set(float64(len(r.byUser)))
			return userID, true
		}
	}
	return 0, false
}

func (r *Registry) Find(userID int64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Snapshot returns the presence set ordered by user id.
func (r *Registry) Snapshot() []PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]PresenceEntry, 0, len(r.byUser))
	for userID, c := range r.byUser {
		entries = append(entries, PresenceEntry{UserID: userID, ConnectionID: c.ID})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}
