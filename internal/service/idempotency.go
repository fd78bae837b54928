package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/relaymsg/messenger-store/internal/model"
)

const idempotencyTTL = 24 * time.Hour

// idempotencyCache remembers appended messages by (conversation, client key)
// so retried appends replay the original result. Best effort: entries expire
// and live only in this process, matching the at-least-once baseline.
type idempotencyCache struct {
	mu      sync.Mutex
	entries map[string]idemEntry
}

type idemEntry struct {
	msg       model.Message
	expiresAt time.Time
}

func newIdempotencyCache() *idempotencyCache {
	return &idempotencyCache{entries: make(map[string]idemEntry)}
}

func idemKey(conversationID int64, key string) string {
	return fmt.Sprintf("%d:%s", conversationID, key)
}

func (c *idempotencyCache) get(conversationID int64, key string) (*model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[idemKey(conversationID, key)]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, idemKey(conversationID, key))
		return nil, false
	}
	msg := entry.msg
	return &msg, true
}

func (c *idempotencyCache) put(conversationID int64, key string, msg *model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[idemKey(conversationID, key)] = idemEntry{
		msg:       *msg,
		expiresAt: now.Add(idempotencyTTL),
	}
}
