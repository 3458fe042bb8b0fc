package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/api/ws"
)

func registerAuthRoutes(api huma.API, authSvc v1.AuthService, cookie v1.CookieOptions) {
	v1.RegisterAuthRoutes(api, authSvc, cookie)
}

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterUserRoutes(api, deps.Auth)
	v1.RegisterTaskRoutes(api, deps.Tasks)
	v1.RegisterPresenceRoutes(api, deps.Presence)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/events", hub.ServeEvents)
}
