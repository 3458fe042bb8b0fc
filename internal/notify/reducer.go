// Package notify turns the task event stream into per-user notification state
// on the receiving side of the push channel.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
)

// DefaultRetention caps the notification list of one session.
const DefaultRetention = 100

// Notification is a client-local, human-readable rendering of a relevant event.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	TaskID    uuid.UUID        `json:"taskId"`
	Type      domain.EventType `json:"type"`
	Title     string           `json:"title"`
	Timestamp time.Time        `json:"timestamp"`
	Message   string           `json:"message"`
	Event     domain.TaskEvent `json:"event"`
	Read      bool             `json:"read"`
}

// Relevant reports whether ev concerns userID. It depends only on its inputs.
func Relevant(ev domain.TaskEvent, userID uuid.UUID) bool {
	switch e := ev.(type) {
	case domain.TaskCreated:
		return e.AssignedToID != nil && *e.AssignedToID == userID
	case domain.TaskAssigned:
		return e.AssignedToID == userID
	case domain.TaskUpdated:
		return true
	case domain.TaskDeleted:
		return (e.AssignedToID != nil && *e.AssignedToID == userID) || e.DeletedByID == userID
	default:
		return false
	}
}

// Message renders ev for userID.
func Message(ev domain.TaskEvent, userID uuid.UUID) string {
	switch e := ev.(type) {
	case domain.TaskCreated:
		return fmt.Sprintf("A task \"%s\" was created and assigned to you", e.Title)
	case domain.TaskAssigned:
		if e.AssignedToID == userID {
			return fmt.Sprintf("You were assigned a task: \"%s\"", e.Title)
		}
		return fmt.Sprintf("Task \"%s\" was assigned", e.Title)
	case domain.TaskUpdated:
		return fmt.Sprintf("Task \"%s\" was updated", e.Title)
	case domain.TaskDeleted:
		return fmt.Sprintf("Task \"%s\" was deleted", e.Title)
	default:
		return "Task updated"
	}
}

// Reducer holds the notification list of one authenticated session. The
// zero value is not usable; call NewReducer.
type Reducer struct {
	userID    uuid.UUID
	retention int
	now       func() time.Time
	newID     func() uuid.UUID

	mu    sync.RWMutex
	items []Notification // arrival order
}

type Option func(*Reducer)

// WithRetention sets the maximum number of notifications kept. Values <= 0
// disable the cap.
func WithRetention(n int) Option {
	return func(r *Reducer) { r.retention = n }
}

// WithClock overrides the receipt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reducer) { r.now = now }
}

func NewReducer(userID uuid.UUID, opts ...Option) *Reducer {
	r := &Reducer{
		userID:    userID,
		retention: DefaultRetention,
		now:       time.Now,
		newID:     uuid.New,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reducer) UserID() uuid.UUID { return r.userID }

// Apply records ev if it is relevant to the session user. It returns the new
// notification and true, or false when ev was discarded. The TASK_ASSIGNED
// that follows a TASK_CREATED for the same task and assignee is folded into
// the creation notice, so creating an assigned task notifies once.
func (r *Reducer) Apply(ev domain.TaskEvent) (Notification, bool) {
	if ev == nil || !Relevant(ev, r.userID) {
		return Notification{}, false
	}

	n := Notification{
		ID:        r.newID(),
		TaskID:    ev.EventTaskID(),
		Type:      ev.Type(),
		Title:     ev.EventTitle(),
		Timestamp: r.now(),
		Message:   Message(ev, r.userID),
		Event:     ev,
	}

	r.mu.Lock()
	if r.announcedLocked(ev) {
		r.mu.Unlock()
		return Notification{}, false
	}
	r.items = append(r.items, n)
	if r.retention > 0 && len(r.items) > r.retention {
		drop := len(r.items) - r.retention
		r.items = append(r.items[:0:0], r.items[drop:]...)
	}
	r.mu.Unlock()

	return n, true
}

// announcedLocked reports whether ev is an assignment already covered by the
// latest notification about the same task.
func (r *Reducer) announcedLocked(ev domain.TaskEvent) bool {
	assigned, ok := ev.(domain.TaskAssigned)
	if !ok {
		return false
	}
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].TaskID != assigned.TaskID {
			continue
		}
		created, ok := r.items[i].Event.(domain.TaskCreated)
		return ok && created.AssignedToID != nil && *created.AssignedToID == assigned.AssignedToID
	}
	return false
}

// List returns the notifications most recent first.
func (r *Reducer) List() []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Notification, len(r.items))
	for i, n := range r.items {
		out[len(r.items)-1-i] = n
	}
	return out
}

// Latest returns the most recent notification, for toast display.
func (r *Reducer) Latest() (Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

func (r *Reducer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *Reducer) UnreadCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unread := 0
	for _, n := range r.items {
		if !n.Read {
			unread++
		}
	}
	return unread
}

func (r *Reducer) MarkAllRead() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items {
		r.items[i].Read = true
	}
}

// Reset discards all state, as on logout.
func (r *Reducer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
