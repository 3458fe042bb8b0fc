package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// UserCache short-circuits user existence checks.
// *redis.UserCache satisfies this interface.
type UserCache interface {
	Known(ctx context.Context, id uuid.UUID) (bool, error)
	Remember(ctx context.Context, id uuid.UUID) error
}

// Identity resolves push-channel handshake identities to registered users.
type Identity struct {
	users domain.UserRepository
	cache UserCache // nil disables caching
}

func NewIdentity(users domain.UserRepository, cache UserCache) *Identity {
	return &Identity{users: users, cache: cache}
}

// Resolve parses raw as a user id and reports whether that user exists.
// Cache failures fall back to the repository.
func (i *Identity) Resolve(ctx context.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}

	if i.cache != nil {
		known, cacheErr := i.cache.Known(ctx, id)
		if cacheErr != nil {
			log.Warn().Err(cacheErr).Msg("auth: identity cache lookup failed")
		} else if known {
			return id, true
		}
	}

	if _, err := i.users.GetByID(ctx, id); err != nil {
		return uuid.Nil, false
	}

	if i.cache != nil {
		if cacheErr := i.cache.Remember(ctx, id); cacheErr != nil {
			log.Warn().Err(cacheErr).Msg("auth: identity cache store failed")
		}
	}
	return id, true
}
