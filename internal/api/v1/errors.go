package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

// toHTTPError maps service errors onto problem responses. what names the
// failed operation in the 500 detail.
func toHTTPError(err error, what string) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("task not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return huma.Error401Unauthorized("unauthorized")
	default:
		return huma.Error500InternalServerError("failed to "+what, err)
	}
}

func actorFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, huma.Error401Unauthorized("missing user context")
	}
	return userID, nil
}
