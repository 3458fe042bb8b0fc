package v1

import (
	"bytes"
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

type PresenceOutput struct {
	Body struct {
		Online []uuid.UUID `json:"online" doc:"Users with at least one open push-channel connection"`
	}
}

func RegisterPresenceRoutes(api huma.API, reader PresenceReader) {
	huma.Register(api, huma.Operation{
		OperationID: "list-presence",
		Method:      http.MethodGet,
		Path:        "/presence",
		Summary:     "List online users",
		Tags:        []string{"Presence"},
	}, func(_ context.Context, _ *struct{}) (*PresenceOutput, error) {
		online := reader.OnlineUsers()
		slices.SortFunc(online, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

		out := &PresenceOutput{}
		out.Body.Online = online
		return out, nil
	})
}
