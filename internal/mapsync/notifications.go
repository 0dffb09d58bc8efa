package mapsync

import (
	"sync"
	"time"
)

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

const defaultNotificationLimit = 100

// Notification is an operator-facing, non-fatal failure report.
type Notification struct {
	ID        uint64    `json:"id"`
	Level     Level     `json:"level"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// notifications keeps the most recent entries, newest last. It has its own lock because feed writes
// report failures outside the engine lock.
type notifications struct {
	mu    sync.Mutex
	seq   uint64
	limit int
	items []Notification
}

func newNotifications(limit int) *notifications {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	return &notifications{limit: limit}
}

func (n *notifications) add(now time.Time, level Level, op, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	n.items = append(n.items, Notification{ID: n.seq, Level: level, Operation: op, Message: msg, CreatedAt: now})
	if over := len(n.items) - n.limit; over > 0 {
		n.items = append(n.items[:0:0], n.items[over:]...)
	}
}

func (n *notifications) list() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}

// Notifications returns recent feed failures, oldest first.
func (e *Engine) Notifications() []Notification {
	return e.notes.list()
}
