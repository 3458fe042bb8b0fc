package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/task"
)

// Assignee is a patch field that tells an absent assignedToId apart from an
// explicit null, which unassigns the task.
type Assignee struct {
	Set bool
	ID  *uuid.UUID
}

func (a *Assignee) UnmarshalJSON(data []byte) error {
	a.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		a.ID = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("v1.Assignee.UnmarshalJSON: %w", err)
	}
	a.ID = &id
	return nil
}

func (a Assignee) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ID)
}

// Schema describes the field as a nullable uuid string.
func (Assignee) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeString,
		Format:      "uuid",
		Nullable:    true,
		Description: "Assignee user ID; null unassigns the task",
	}
}

type CreateTaskInput struct {
	Body struct {
		Title        string     `json:"title" minLength:"1" maxLength:"100" doc:"Task title"`
		Description  string     `json:"description,omitempty" doc:"Task description"`
		DueDate      time.Time  `json:"dueDate" doc:"Due date"`
		Priority     string     `json:"priority" enum:"Low,Medium,High,Urgent" doc:"Task priority"`
		Status       string     `json:"status,omitempty" enum:"To Do,In Progress,Review,Completed" doc:"Initial status, defaults to To Do"`
		AssignedToID *uuid.UUID `json:"assignedToId,omitempty" doc:"Assignee user ID"`
	}
}

type TaskOutput struct {
	Body *domain.Task
}

type ListTasksOutput struct {
	Body []*domain.Task
}

type TaskIDInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type UpdateTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Title        *string    `json:"title,omitempty" minLength:"1" maxLength:"100" doc:"Task title"`
		Description  *string    `json:"description,omitempty" doc:"Task description"`
		DueDate      *time.Time `json:"dueDate,omitempty" doc:"Due date"`
		Priority     *string    `json:"priority,omitempty" enum:"Low,Medium,High,Urgent" doc:"Task priority"`
		Status       *string    `json:"status,omitempty" enum:"To Do,In Progress,Review,Completed" doc:"Task status"`
		AssignedToID Assignee   `json:"assignedToId,omitempty"`
	}
}

func RegisterTaskRoutes(api huma.API, tasks TaskService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a new task",
		Tags:          []string{"Tasks"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
		actorID, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		t, err := tasks.Create(ctx, actorID, task.CreateInput{
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			DueDate:      input.Body.DueDate,
			Priority:     domain.TaskPriority(input.Body.Priority),
			Status:       domain.TaskStatus(input.Body.Status),
			AssignedToID: input.Body.AssignedToID,
		})
		if err != nil {
			return nil, toHTTPError(err, "create task")
		}
		return &TaskOutput{Body: t}, nil
	})

	registerTaskList(api, tasks.List, "list-tasks", "/tasks", "List all tasks")

	registerTaskList(api, withActor(tasks.ListAssigned), "list-assigned-tasks", "/tasks/assigned",
		"List tasks assigned to the current user")

	registerTaskList(api, withActor(tasks.ListCreated), "list-created-tasks", "/tasks/created",
		"List tasks created by the current user")

	registerTaskList(api, withActor(tasks.ListOverdue), "list-overdue-tasks", "/tasks/overdue",
		"List overdue tasks assigned to the current user")

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task by ID",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskIDInput) (*TaskOutput, error) {
		t, err := tasks.Get(ctx, input.ID)
		if err != nil {
			return nil, toHTTPError(err, "get task")
		}
		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Partially update a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
		actorID, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		b := input.Body
		p := task.Patch{
			Title:       b.Title,
			Description: b.Description,
			DueDate:     b.DueDate,
		}
		if b.Priority != nil {
			pr := domain.TaskPriority(*b.Priority)
			p.Priority = &pr
		}
		if b.Status != nil {
			st := domain.TaskStatus(*b.Status)
			p.Status = &st
		}
		if b.AssignedToID.Set {
			p.Assignee = &domain.AssigneeChange{ID: b.AssignedToID.ID}
		}

		t, err := tasks.Update(ctx, actorID, input.ID, p)
		if err != nil {
			return nil, toHTTPError(err, "update task")
		}
		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TaskIDInput) (*struct{}, error) {
		actorID, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		if err := tasks.Delete(ctx, actorID, input.ID); err != nil {
			return nil, toHTTPError(err, "delete task")
		}
		return nil, nil
	})
}

type listFunc func(ctx context.Context) ([]*domain.Task, error)

// withActor binds a per-user query to the authenticated user.
func withActor(fn func(context.Context, uuid.UUID) ([]*domain.Task, error)) listFunc {
	return func(ctx context.Context) ([]*domain.Task, error) {
		userID, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}
		return fn(ctx, userID)
	}
}

func registerTaskList(api huma.API, list listFunc, opID, path, summary string) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodGet,
		Path:        path,
		Summary:     summary,
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, _ *struct{}) (*ListTasksOutput, error) {
		out, err := list(ctx)
		if err != nil {
			var se huma.StatusError
			if errors.As(err, &se) {
				return nil, err
			}
			return nil, toHTTPError(err, "list tasks")
		}
		return &ListTasksOutput{Body: out}, nil
	})
}
