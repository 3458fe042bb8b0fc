package task

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// Broadcaster delivers task events to connected clients. Delivery is best
// effort; errors are reported for logging only.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev domain.TaskEvent) error
}

// CreateInput carries the fields accepted when creating a task.
type CreateInput struct {
	Title        string
	Description  string
	DueDate      time.Time
	Priority     domain.TaskPriority
	Status       domain.TaskStatus // optional, defaults to "To Do"
	AssignedToID *uuid.UUID
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *domain.TaskPriority
	Status      *domain.TaskStatus
	Assignee    *domain.AssigneeChange
}

// Service applies task mutations against the store and emits the resulting
// events through the broadcaster.
type Service struct {
	tasks       domain.TaskRepository
	broadcaster Broadcaster
	now         func() time.Time
}

func NewService(tasks domain.TaskRepository, broadcaster Broadcaster) *Service {
	return &Service{
		tasks:       tasks,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// Create validates and stores a new task. It emits TASK_CREATED and, when the
// task has an assignee, TASK_ASSIGNED with the creator as assigner.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in CreateInput) (*domain.Task, error) {
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("task.Service.Create: %w", err)
	}

	status := in.Status
	if status == "" {
		status = domain.TaskStatusToDo
	}

	now := s.now()
	t := &domain.Task{
		ID:           uuid.New(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		DueDate:      in.DueDate,
		Priority:     in.Priority,
		Status:       status,
		CreatorID:    actorID,
		AssignedToID: in.AssignedToID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.tasks.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("task.Service.Create: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("task.Service.Create: %w", domain.ErrWriteFailed)
	}

	s.emit(ctx, domain.TaskCreated{
		TaskID:       created.ID,
		Title:        created.Title,
		CreatorID:    created.CreatorID,
		AssignedToID: created.AssignedToID,
	})
	if created.AssignedToID != nil {
		s.emit(ctx, domain.TaskAssigned{
			TaskID:       created.ID,
			Title:        created.Title,
			AssignedToID: *created.AssignedToID,
			AssignedByID: actorID,
		})
	}

	return created, nil
}

// Update applies p to the task and emits TASK_UPDATED carrying only the
// status, priority and assignee fields p supplied. A new, different assignee
// additionally yields a TASK_ASSIGNED for that user.
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, p Patch) (*domain.Task, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("task.Service.Update: %w", err)
	}

	prior, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task.Service.Update: %w", err)
	}
	priorAssignee := prior.AssignedToID

	next := *prior
	p.apply(&next)
	next.UpdatedAt = s.now()

	updated, err := s.tasks.Update(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("task.Service.Update: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("task.Service.Update: %w", domain.ErrNotFound)
	}

	s.emit(ctx, domain.TaskUpdated{
		TaskID: updated.ID,
		Title:  updated.Title,
		Changes: domain.TaskChanges{
			Status:   p.Status,
			Priority: p.Priority,
			Assignee: p.Assignee,
		},
		UpdatedByID: actorID,
	})

	if p.Assignee != nil && p.Assignee.ID != nil && !domain.SameAssignee(priorAssignee, p.Assignee.ID) {
		s.emit(ctx, domain.TaskAssigned{
			TaskID:       updated.ID,
			Title:        updated.Title,
			AssignedToID: *p.Assignee.ID,
			AssignedByID: actorID,
		})
	}

	return updated, nil
}

// Delete removes the task and emits TASK_DELETED with the assignee it had
// before deletion.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	prior, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("task.Service.Delete: %w", err)
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return fmt.Errorf("task.Service.Delete: %w", err)
	}

	s.emit(ctx, domain.TaskDeleted{
		TaskID:       prior.ID,
		Title:        prior.Title,
		DeletedByID:  actorID,
		AssignedToID: prior.AssignedToID,
	})

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task.Service.Get: %w", err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Task, error) {
	return s.list(ctx, "List", domain.TaskFilter{})
}

// ListAssigned returns tasks assigned to userID ordered by due date.
func (s *Service) ListAssigned(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return s.list(ctx, "ListAssigned", domain.TaskFilter{AssignedToID: &userID})
}

// ListCreated returns tasks created by userID ordered by due date.
func (s *Service) ListCreated(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return s.list(ctx, "ListCreated", domain.TaskFilter{CreatorID: &userID})
}

// ListOverdue returns incomplete tasks assigned to userID whose due date has passed.
func (s *Service) ListOverdue(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	now := s.now()
	return s.list(ctx, "ListOverdue", domain.TaskFilter{
		AssignedToID: &userID,
		DueBefore:    &now,
		ExcludeDone:  true,
	})
}

func (s *Service) list(ctx context.Context, op string, f domain.TaskFilter) ([]*domain.Task, error) {
	tasks, err := s.tasks.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("task.Service.%s: %w", op, err)
	}
	return tasks, nil
}

// emit hands ev to the broadcaster. The persisted write has already
// succeeded, so failures are logged and swallowed, and the request context's
// cancellation is not propagated.
func (s *Service) emit(ctx context.Context, ev domain.TaskEvent) {
	if err := s.broadcaster.Broadcast(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).
			Str("event", string(ev.Type())).
			Str("task_id", ev.EventTaskID().String()).
			Msg("task: broadcast failed")
	}
}

func (in CreateInput) validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if in.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", domain.ErrValidation)
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("%w: priority %q is not one of Low, Medium, High, Urgent", domain.ErrValidation, in.Priority)
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, in.Status)
	}
	if in.AssignedToID != nil && *in.AssignedToID == uuid.Nil {
		return fmt.Errorf("%w: assignee id is empty", domain.ErrValidation)
	}
	return nil
}

func (p Patch) validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return fmt.Errorf("%w: due date cannot be empty", domain.ErrValidation)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: priority %q is not one of Low, Medium, High, Urgent", domain.ErrValidation, *p.Priority)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *p.Status)
	}
	if p.Assignee != nil && p.Assignee.ID != nil && *p.Assignee.ID == uuid.Nil {
		return fmt.Errorf("%w: assignee id is empty", domain.ErrValidation)
	}
	return nil
}

func (p Patch) apply(t *domain.Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Assignee != nil {
		t.AssignedToID = p.Assignee.ID
	}
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(title) > domain.MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", domain.ErrValidation, domain.MaxTitleLength)
	}
	return nil
}
