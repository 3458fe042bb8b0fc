package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/domain"
)

func TestUsers(t *testing.T) {
	t.Parallel()

	alice := uuid.New()

	t.Run("me", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockAuthService{
			getUserFunc: func(_ context.Context, userID uuid.UUID) (*domain.User, error) {
				return &domain.User{ID: userID, Name: "Alice", PasswordHash: "salt$hash"}, nil
			},
		})

		resp := api.GetCtx(userCtx(alice), "/users/me")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.NotContains(t, resp.Body.String(), "salt$hash")
		var body domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, alice, body.ID)
	})

	t.Run("me_without_user_is_401", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockAuthService{})

		resp := api.Get("/users/me")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("update_me_conflict", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockAuthService{
			updateProfileFunc: func(context.Context, uuid.UUID, string, string) (*domain.User, error) {
				return nil, auth.ErrUserAlreadyExists
			},
		})

		resp := api.PutCtx(userCtx(alice), "/users/me", map[string]any{"email": "taken@example.com"})
		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockAuthService{
			listUsersFunc: func(context.Context) ([]*domain.User, error) {
				return []*domain.User{{ID: alice, Name: "Alice"}, {ID: uuid.New(), Name: "Bob"}}, nil
			},
		})

		resp := api.GetCtx(userCtx(alice), "/users")

		require.Equal(t, http.StatusOK, resp.Code)
		var body []domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body, 2)
	})
}

func TestPresence(t *testing.T) {
	t.Parallel()

	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	_, api := humatest.New(t)
	v1.RegisterPresenceRoutes(api, stubPresence{a, b})

	resp := api.Get("/presence")

	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Online []uuid.UUID `json:"online"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []uuid.UUID{b, a}, body.Online)
}
