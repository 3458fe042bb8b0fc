package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/task"
)

// TaskService abstracts task mutations and queries for handler testing.
// *task.Service satisfies this interface.
type TaskService interface {
	Create(ctx context.Context, actorID uuid.UUID, in task.CreateInput) (*domain.Task, error)
	Update(ctx context.Context, actorID, id uuid.UUID, p task.Patch) (*domain.Task, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	List(ctx context.Context) ([]*domain.Task, error)
	ListAssigned(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
	ListCreated(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
	ListOverdue(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
}

// AuthService abstracts account operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string) (*domain.User, error)
}

// PresenceReader reports which users currently hold a push-channel connection.
// *presence.Registry satisfies this interface.
type PresenceReader interface {
	OnlineUsers() []uuid.UUID
}
