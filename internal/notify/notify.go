// Package notify keeps the short-lived user-facing messages produced by
// store operations.
package notify

import (
	"sync"
	"time"

	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind = schema.NotificationKind

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 5 * time.Second

// Notification is a single message.
type Notification = schema.Notification

// Notifier is what producers need.
type Notifier interface {
	Notify(message string, kind Kind) Notification
}

// Center holds live notifications in insertion order and expires them after
// its TTL. A zero TTL keeps them until dismissed.
type Center struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	items  []Notification
	timers map[string]*time.Timer
	closed bool
}

// NewCenter returns a Center expiring notifications after ttl.
func NewCenter(ttl time.Duration) *Center {
	return &Center{
		ttl:    ttl,
		now:    time.Now,
		timers: make(map[string]*time.Timer),
	}
}

var _ Notifier = (*Center)(nil)

// Notify records message and schedules its removal.
func (c *Center) Notify(message string, kind Kind) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		Timestamp: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return n
	}
	c.items = append(c.items, n)
	if c.ttl > 0 {
		id := n.ID
		c.timers[id] = time.AfterFunc(c.ttl, func() { c.Dismiss(id) })
	}
	return n
}

// Dismiss removes a notification. It reports whether id was live.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the live notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Close stops pending expiry timers. Later notifications are dropped.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.closed = true
}
