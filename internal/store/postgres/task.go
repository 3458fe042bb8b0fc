package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskboard/internal/domain"
)

// taskColumns is the shared column list for task queries.
var taskColumns = []string{ //nolint:gochecknoglobals // read-only column list
	"id", "title", "description", "due_date", "priority", "status",
	"creator_id", "assigned_to_id", "created_at", "updated_at",
}

// foreignKeyViolation is raised when assigned_to_id names no user.
const foreignKeyViolation = "23503"

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	query, args, err := psql.
		Insert("tasks").
		Columns(taskColumns...).
		Values(t.ID, t.Title, t.Description, t.DueDate, t.Priority, t.Status,
			t.CreatorID, t.AssignedToID, t.CreatedAt, t.UpdatedAt).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Create: build query: %w", err)
	}

	created, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // no record means the write did not land
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Create: %w", mapWriteErr(err))
	}

	return created, nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: build query: %w", err)
	}

	t, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) List(ctx context.Context, f domain.TaskFilter) ([]*domain.Task, error) {
	query, args, err := listQuery(f)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.List: build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.List: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.List")
}

// listLimit caps a single List result.
const listLimit = 1000

func listQuery(f domain.TaskFilter) (string, []any, error) {
	b := psql.Select(taskColumns...).From("tasks")

	if f.CreatorID != nil {
		b = b.Where(sq.Eq{"creator_id": *f.CreatorID})
	}
	if f.AssignedToID != nil {
		b = b.Where(sq.Eq{"assigned_to_id": *f.AssignedToID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.DueBefore != nil {
		b = b.Where(sq.Lt{"due_date": *f.DueBefore})
	}
	if f.ExcludeDone {
		b = b.Where(sq.NotEq{"status": domain.TaskStatusCompleted})
	}

	return b.OrderBy("due_date", "created_at").Limit(listLimit).ToSql()
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	query, args, err := psql.
		Update("tasks").
		SetMap(map[string]any{
			"title":          t.Title,
			"description":    t.Description,
			"due_date":       t.DueDate,
			"priority":       t.Priority,
			"status":         t.Status,
			"assigned_to_id": t.AssignedToID,
			"updated_at":     t.UpdatedAt,
		}).
		Where(sq.Eq{"id": t.ID}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Update: build query: %w", err)
	}

	updated, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // row vanished between read and write
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Update: %w", mapWriteErr(err))
	}

	return updated, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := psql.Delete("tasks").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("taskRepo.Delete: build query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("taskRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func columnList() string {
	return strings.Join(taskColumns, ", ")
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: assignee does not exist", domain.ErrValidation)
	}
	return err
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Status,
		&t.CreatorID, &t.AssignedToID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows, caller string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}
