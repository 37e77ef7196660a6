package client

import (
	"sync"

	"bazarchat/pkg/models"
)

// CacheKey scopes a message list to a chat as seen by one viewer. The
// viewer id only scopes rendering state; the underlying data is the
// same for both participants.
type CacheKey struct {
	ChatID string
	Viewer string
}

// MessageCache is the explicit keyed cache behind chat views. All
// mutations go through its methods so updates stay serialized.
type MessageCache struct {
	mu sync.RWMutex
	m  map[CacheKey][]models.Message
}

// NewMessageCache returns an empty cache.
func NewMessageCache() *MessageCache {
	return &MessageCache{m: map[CacheKey][]models.Message{}}
}

// Set replaces the cached list for key.
func (c *MessageCache) Set(key CacheKey, msgs []models.Message) {
	cp := make([]models.Message, len(msgs))
	copy(cp, msgs)
	c.mu.Lock()
	c.m[key] = cp
	c.mu.Unlock()
}

// Get returns a copy of the cached list and whether the key exists.
func (c *MessageCache) Get(key CacheKey) ([]models.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs, ok := c.m[key]
	if !ok {
		return nil, false
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, true
}

// Len returns the number of cached messages for key.
func (c *MessageCache) Len(key CacheKey) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m[key])
}

// Merge applies an incoming message: replace in place when a message
// with the same id exists (read-flag transitions, reconciled optimistic
// rows), otherwise append to the end. No re-sorting happens; creation
// order is assumed to match arrival order.
func (c *MessageCache) Merge(key CacheKey, msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.m[key]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			return
		}
	}
	c.m[key] = append(list, msg)
}

// Append adds a message to the end of the list unconditionally.
func (c *MessageCache) Append(key CacheKey, msg models.Message) {
	c.mu.Lock()
	c.m[key] = append(c.m[key], msg)
	c.mu.Unlock()
}

// ReplaceByID overwrites the entry with oldID in place and reports
// whether it was found.
func (c *MessageCache) ReplaceByID(key CacheKey, oldID string, msg models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.m[key]
	for i := range list {
		if list[i].ID == oldID {
			list[i] = msg
			return true
		}
	}
	return false
}

// Confirm reconciles an optimistic send with the stored record. The
// temporary row is overwritten in place, unless the live channel
// already delivered the confirmed id, in which case the temporary row
// is dropped instead so the confirmed id appears exactly once. The
// lookup and the swap happen under one lock.
func (c *MessageCache) Confirm(key CacheKey, tmpID string, stored models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.m[key]
	confirmedAt, tmpAt := -1, -1
	for i := range list {
		switch list[i].ID {
		case stored.ID:
			confirmedAt = i
		case tmpID:
			tmpAt = i
		}
	}
	switch {
	case confirmedAt >= 0:
		list[confirmedAt] = stored
		if tmpAt >= 0 {
			c.m[key] = append(list[:tmpAt], list[tmpAt+1:]...)
		}
	case tmpAt >= 0:
		list[tmpAt] = stored
	default:
		c.m[key] = append(list, stored)
	}
}

// RemoveByID deletes the entry with id and reports whether it existed.
func (c *MessageCache) RemoveByID(key CacheKey, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.m[key]
	for i := range list {
		if list[i].ID == id {
			c.m[key] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}
