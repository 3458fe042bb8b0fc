package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

// CookieOptions controls the token cookie set on login.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

type RegisterInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" format:"email" doc:"User email"`
		Password string `json:"password" minLength:"8" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
		Name     string `json:"name" minLength:"2" maxLength:"255" doc:"Display name"`
	}
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type SessionOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		User  *domain.User `json:"user"`
		Token string       `json:"token"` //nolint:gosec // G117: auth response DTO
	}
}

type LogoutOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
}

func RegisterAuthRoutes(api huma.API, authSvc AuthService, cookie CookieOptions) {
	session := func(user *domain.User, token string) *SessionOutput {
		out := &SessionOutput{SetCookie: tokenCookie(token, cookie)}
		out.Body.User = user
		out.Body.Token = token
		return out
	}

	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a new user",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RegisterInput) (*SessionOutput, error) {
		user, token, err := authSvc.Register(ctx, input.Body.Email, input.Body.Password, input.Body.Name)
		if err != nil {
			if errors.Is(err, auth.ErrUserAlreadyExists) {
				return nil, huma.Error409Conflict("user already exists")
			}
			return nil, huma.Error500InternalServerError("failed to register user", err)
		}
		return session(user, token), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
		user, token, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, huma.Error401Unauthorized("invalid email or password")
			}
			return nil, huma.Error500InternalServerError("login failed", err)
		}
		return session(user, token), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Summary:     "Clear the session cookie",
		Tags:        []string{"Auth"},
	}, func(_ context.Context, _ *struct{}) (*LogoutOutput, error) {
		c := tokenCookie("", cookie)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		return &LogoutOutput{SetCookie: c}, nil
	})
}

func tokenCookie(value string, opts CookieOptions) http.Cookie {
	return http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
