package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/server/middleware"
	"github.com/gosuda/taskboard/internal/task"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithUserID(context.Background(), userID)
}

// ---------------------------------------------------------------------------
// Mock TaskService
// ---------------------------------------------------------------------------

type mockTaskService struct {
	createFunc       func(ctx context.Context, actorID uuid.UUID, in task.CreateInput) (*domain.Task, error)
	updateFunc       func(ctx context.Context, actorID, id uuid.UUID, p task.Patch) (*domain.Task, error)
	deleteFunc       func(ctx context.Context, actorID, id uuid.UUID) error
	getFunc          func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	listFunc         func(ctx context.Context) ([]*domain.Task, error)
	listAssignedFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
	listCreatedFunc  func(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
	listOverdueFunc  func(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
}

func (m *mockTaskService) Create(ctx context.Context, actorID uuid.UUID, in task.CreateInput) (*domain.Task, error) {
	return m.createFunc(ctx, actorID, in)
}

func (m *mockTaskService) Update(ctx context.Context, actorID, id uuid.UUID, p task.Patch) (*domain.Task, error) {
	return m.updateFunc(ctx, actorID, id, p)
}

func (m *mockTaskService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	return m.deleteFunc(ctx, actorID, id)
}

func (m *mockTaskService) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return m.getFunc(ctx, id)
}

func (m *mockTaskService) List(ctx context.Context) ([]*domain.Task, error) {
	return m.listFunc(ctx)
}

func (m *mockTaskService) ListAssigned(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return m.listAssignedFunc(ctx, userID)
}

func (m *mockTaskService) ListCreated(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return m.listCreatedFunc(ctx, userID)
}

func (m *mockTaskService) ListOverdue(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return m.listOverdueFunc(ctx, userID)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc      func(ctx context.Context, email, password, name string) (*domain.User, string, error)
	loginFunc         func(ctx context.Context, email, password string) (*domain.User, string, error)
	getUserFunc       func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	listUsersFunc     func(ctx context.Context) ([]*domain.User, error)
	updateProfileFunc func(ctx context.Context, userID uuid.UUID, name, email string) (*domain.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (*domain.User, string, error) {
	return m.registerFunc(ctx, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return m.getUserFunc(ctx, userID)
}

func (m *mockAuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return m.listUsersFunc(ctx)
}

func (m *mockAuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string) (*domain.User, error) {
	return m.updateProfileFunc(ctx, userID, name, email)
}

// ---------------------------------------------------------------------------
// Stub PresenceReader
// ---------------------------------------------------------------------------

type stubPresence []uuid.UUID

func (s stubPresence) OnlineUsers() []uuid.UUID {
	out := make([]uuid.UUID, len(s))
	copy(out, s)
	return out
}
