package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// EventType is the wire discriminator of a TaskEvent.
type EventType string

const (
	EventTaskCreated  EventType = "TASK_CREATED"
	EventTaskAssigned EventType = "TASK_ASSIGNED"
	EventTaskUpdated  EventType = "TASK_UPDATED"
	EventTaskDeleted  EventType = "TASK_DELETED"
)

// ErrUnknownEvent is returned by DecodeTaskEvent for an unrecognised type.
var ErrUnknownEvent = errors.New("domain: unknown task event type")

// TaskEvent describes one completed task mutation. The set of implementations
// is closed: TaskCreated, TaskAssigned, TaskUpdated and TaskDeleted.
type TaskEvent interface {
	Type() EventType
	EventTaskID() uuid.UUID
	EventTitle() string

	sealed()
}

type TaskCreated struct {
	TaskID       uuid.UUID  `json:"taskId"`
	Title        string     `json:"title"`
	CreatorID    uuid.UUID  `json:"creatorId"`
	AssignedToID *uuid.UUID `json:"assignedToId"`
}

// TaskAssigned is delivered only to the assignee's connections.
type TaskAssigned struct {
	TaskID       uuid.UUID `json:"taskId"`
	Title        string    `json:"title"`
	AssignedToID uuid.UUID `json:"assignedToId"`
	AssignedByID uuid.UUID `json:"assignedById"`
}

type TaskUpdated struct {
	TaskID      uuid.UUID   `json:"taskId"`
	Title       string      `json:"title"`
	Changes     TaskChanges `json:"changes"`
	UpdatedByID uuid.UUID   `json:"updatedById"`
}

type TaskDeleted struct {
	TaskID       uuid.UUID  `json:"taskId"`
	Title        string     `json:"title"`
	DeletedByID  uuid.UUID  `json:"deletedById"`
	AssignedToID *uuid.UUID `json:"assignedToId"`
}

// TaskChanges lists the fields a patch supplied. A nil pointer means the
// field was not part of the patch. Assignee is nil when the patch did not
// touch the assignee; Assignee.ID is nil when the patch cleared it.
type TaskChanges struct {
	Status   *TaskStatus
	Priority *TaskPriority
	Assignee *AssigneeChange
}

type AssigneeChange struct {
	ID *uuid.UUID
}

func (TaskCreated) Type() EventType  { return EventTaskCreated }
func (TaskAssigned) Type() EventType { return EventTaskAssigned }
func (TaskUpdated) Type() EventType  { return EventTaskUpdated }
func (TaskDeleted) Type() EventType  { return EventTaskDeleted }

func (e TaskCreated) EventTaskID() uuid.UUID  { return e.TaskID }
func (e TaskAssigned) EventTaskID() uuid.UUID { return e.TaskID }
func (e TaskUpdated) EventTaskID() uuid.UUID  { return e.TaskID }
func (e TaskDeleted) EventTaskID() uuid.UUID  { return e.TaskID }

func (e TaskCreated) EventTitle() string  { return e.Title }
func (e TaskAssigned) EventTitle() string { return e.Title }
func (e TaskUpdated) EventTitle() string  { return e.Title }
func (e TaskDeleted) EventTitle() string  { return e.Title }

func (TaskCreated) sealed()  {}
func (TaskAssigned) sealed() {}
func (TaskUpdated) sealed()  {}
func (TaskDeleted) sealed()  {}

func (e TaskCreated) MarshalJSON() ([]byte, error) {
	type plain TaskCreated
	return marshalTagged(EventTaskCreated, plain(e))
}

func (e TaskAssigned) MarshalJSON() ([]byte, error) {
	type plain TaskAssigned
	return marshalTagged(EventTaskAssigned, plain(e))
}

func (e TaskUpdated) MarshalJSON() ([]byte, error) {
	type plain TaskUpdated
	return marshalTagged(EventTaskUpdated, plain(e))
}

func (e TaskDeleted) MarshalJSON() ([]byte, error) {
	type plain TaskDeleted
	return marshalTagged(EventTaskDeleted, plain(e))
}

// marshalTagged encodes v and prepends the "type" member.
func marshalTagged(t EventType, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("domain.marshalTagged: %w", err)
	}
	head, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("domain.marshalTagged: %w", err)
	}

	out := make([]byte, 0, len(body)+len(head)+9)
	out = append(out, `{"type":`...)
	out = append(out, head...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

func (c TaskChanges) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 3)
	if c.Status != nil {
		m["status"] = *c.Status
	}
	if c.Priority != nil {
		m["priority"] = *c.Priority
	}
	if c.Assignee != nil {
		m["assignedToId"] = c.Assignee.ID
	}
	return json.Marshal(m)
}

func (c *TaskChanges) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("domain.TaskChanges.UnmarshalJSON: %w", err)
	}

	*c = TaskChanges{}
	if v, ok := raw["status"]; ok {
		var s TaskStatus
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("domain.TaskChanges.UnmarshalJSON: status: %w", err)
		}
		c.Status = &s
	}
	if v, ok := raw["priority"]; ok {
		var p TaskPriority
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("domain.TaskChanges.UnmarshalJSON: priority: %w", err)
		}
		c.Priority = &p
	}
	if v, ok := raw["assignedToId"]; ok {
		var id *uuid.UUID
		if err := json.Unmarshal(v, &id); err != nil {
			return fmt.Errorf("domain.TaskChanges.UnmarshalJSON: assignedToId: %w", err)
		}
		c.Assignee = &AssigneeChange{ID: id}
	}
	return nil
}

// DecodeTaskEvent parses the wire form produced by the event MarshalJSON
// methods back into its concrete variant.
func DecodeTaskEvent(data []byte) (TaskEvent, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("domain.DecodeTaskEvent: %w", err)
	}

	switch head.Type {
	case EventTaskCreated:
		type plain TaskCreated
		var e plain
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("domain.DecodeTaskEvent: %w", err)
		}
		return TaskCreated(e), nil
	case EventTaskAssigned:
		type plain TaskAssigned
		var e plain
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("domain.DecodeTaskEvent: %w", err)
		}
		return TaskAssigned(e), nil
	case EventTaskUpdated:
		type plain TaskUpdated
		var e plain
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("domain.DecodeTaskEvent: %w", err)
		}
		return TaskUpdated(e), nil
	case EventTaskDeleted:
		type plain TaskDeleted
		var e plain
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("domain.DecodeTaskEvent: %w", err)
		}
		return TaskDeleted(e), nil
	default:
		return nil, fmt.Errorf("domain.DecodeTaskEvent: %q: %w", head.Type, ErrUnknownEvent)
	}
}
