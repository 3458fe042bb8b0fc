package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/domain"
)

type ListUsersOutput struct {
	Body []*domain.User
}

type UserOutput struct {
	Body *domain.User
}

type UpdateMeInput struct {
	Body struct {
		Name  string `json:"name,omitempty" maxLength:"255" doc:"Display name"`
		Email string `json:"email,omitempty" maxLength:"255" doc:"User email"`
	}
}

// RegisterUserRoutes exposes the user directory used to pick assignees.
func RegisterUserRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
		users, err := authSvc.ListUsers(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list users", err)
		}
		return &ListUsersOutput{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/users/me",
		Summary:     "Get the current user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*UserOutput, error) {
		userID, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		user, err := authSvc.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get user", err)
		}
		return &UserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-me",
		Method:      http.MethodPut,
		Path:        "/users/me",
		Summary:     "Update the current user's profile",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *UpdateMeInput) (*UserOutput, error) {
		userID, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		user, err := authSvc.UpdateProfile(ctx, userID, input.Body.Name, input.Body.Email)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				return nil, huma.Error404NotFound("user not found")
			case errors.Is(err, auth.ErrUserAlreadyExists):
				return nil, huma.Error409Conflict("email already in use")
			default:
				return nil, huma.Error500InternalServerError("failed to update profile", err)
			}
		}
		return &UserOutput{Body: user}, nil
	})
}
