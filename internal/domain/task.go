package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusToDo       TaskStatus = "To Do"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusReview     TaskStatus = "Review"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusToDo, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
	TaskPriorityUrgent TaskPriority = "Urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	default:
		return false
	}
}

// MaxTitleLength bounds Task.Title, counted in runes.
const MaxTitleLength = 100

type Task struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	DueDate      time.Time    `json:"dueDate"`
	Priority     TaskPriority `json:"priority"`
	Status       TaskStatus   `json:"status"`
	CreatorID    uuid.UUID    `json:"creatorId"`
	AssignedToID *uuid.UUID   `json:"assignedToId"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// IsOverdue reports whether the task is past due and not completed at now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != TaskStatusCompleted && t.DueDate.Before(now)
}

// TaskFilter narrows List queries. Zero fields are ignored.
type TaskFilter struct {
	CreatorID    *uuid.UUID
	AssignedToID *uuid.UUID
	Status       TaskStatus
	DueBefore    *time.Time
	ExcludeDone  bool
}

// TaskRepository is the persisted task store. Create and Update return the
// stored record; a nil record with a nil error means the write did not land.
type TaskRepository interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	List(ctx context.Context, filter TaskFilter) ([]*Task, error)
	Update(ctx context.Context, t *Task) (*Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SameAssignee compares two optional user ids by value.
func SameAssignee(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
