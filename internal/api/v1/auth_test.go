package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/domain"
)

func TestLogin(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Name: "Alice", Email: "alice@example.com"}

	t.Run("sets_token_cookie", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, &mockAuthService{
			loginFunc: func(_ context.Context, email, password string) (*domain.User, string, error) {
				assert.Equal(t, "alice@example.com", email)
				assert.Equal(t, "hunter22", password)
				return user, "jwt-token", nil
			},
		}, v1.CookieOptions{})

		resp := api.Post("/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "hunter22",
		})

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		cookie := resp.Header().Get("Set-Cookie")
		assert.True(t, strings.HasPrefix(cookie, "token=jwt-token"), cookie)
		assert.Contains(t, cookie, "HttpOnly")

		var body struct {
			User  domain.User `json:"user"`
			Token string      `json:"token"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "jwt-token", body.Token)
		assert.Equal(t, user.ID, body.User.ID)
	})

	t.Run("bad_credentials_is_401", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, &mockAuthService{
			loginFunc: func(context.Context, string, string) (*domain.User, string, error) {
				return nil, "", fmt.Errorf("auth.Service.Login: %w", auth.ErrInvalidCredentials)
			},
		}, v1.CookieOptions{})

		resp := api.Post("/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "wrong",
		})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Empty(t, resp.Header().Get("Set-Cookie"))
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("created", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, &mockAuthService{
			registerFunc: func(_ context.Context, email, _, name string) (*domain.User, string, error) {
				return &domain.User{ID: uuid.New(), Email: email, Name: name}, "jwt-token", nil
			},
		}, v1.CookieOptions{Secure: true})

		resp := api.Post("/auth/register", map[string]any{
			"email":    "bob@example.com",
			"password": "long-enough-password",
			"name":     "Bob",
		})

		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		assert.Contains(t, resp.Header().Get("Set-Cookie"), "Secure")
		assert.NotContains(t, resp.Body.String(), "password")
	})

	t.Run("duplicate_is_409", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, &mockAuthService{
			registerFunc: func(context.Context, string, string, string) (*domain.User, string, error) {
				return nil, "", auth.ErrUserAlreadyExists
			},
		}, v1.CookieOptions{})

		resp := api.Post("/auth/register", map[string]any{
			"email":    "bob@example.com",
			"password": "long-enough-password",
			"name":     "Bob",
		})

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("short_password_rejected_by_schema", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, &mockAuthService{}, v1.CookieOptions{})

		resp := api.Post("/auth/register", map[string]any{
			"email":    "bob@example.com",
			"password": "short",
			"name":     "Bob",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterAuthRoutes(api, &mockAuthService{}, v1.CookieOptions{})

	resp := api.Post("/auth/logout")

	assert.Equal(t, http.StatusNoContent, resp.Code)
	cookie := resp.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(cookie, "token=;"), cookie)
	assert.Contains(t, cookie, "Max-Age=0")
}
