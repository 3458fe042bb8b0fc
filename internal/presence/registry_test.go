package presence_test

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/presence"
)

func TestRegistry_JoinLeave(t *testing.T) {
	t.Parallel()

	t.Run("user is online while any connection remains", func(t *testing.T) {
		t.Parallel()

		reg := presence.NewRegistry()
		user := uuid.New()
		c1, c2 := presence.NewConnectionID(), presence.NewConnectionID()

		require.NoError(t, reg.Join(c1, user))
		require.NoError(t, reg.Join(c2, user))
		assert.True(t, reg.IsOnline(user))
		assert.ElementsMatch(t, []presence.ConnectionID{c1, c2}, reg.ConnectionsFor(user))

		got, offline := reg.Leave(c1)
		assert.Equal(t, user, got)
		assert.False(t, offline)
		assert.True(t, reg.IsOnline(user))

		got, offline = reg.Leave(c2)
		assert.Equal(t, user, got)
		assert.True(t, offline)
		assert.False(t, reg.IsOnline(user))
		assert.Empty(t, reg.OnlineUsers())
	})

	t.Run("anonymous connection is rejected", func(t *testing.T) {
		t.Parallel()

		reg := presence.NewRegistry()
		err := reg.Join(presence.NewConnectionID(), uuid.Nil)

		assert.ErrorIs(t, err, presence.ErrNoIdentity)
		assert.Empty(t, reg.OnlineUsers())
	})

	t.Run("joining twice is idempotent", func(t *testing.T) {
		t.Parallel()

		reg := presence.NewRegistry()
		user := uuid.New()
		c := presence.NewConnectionID()

		require.NoError(t, reg.Join(c, user))
		require.NoError(t, reg.Join(c, user))
		assert.Len(t, reg.ConnectionsFor(user), 1)

		_, offline := reg.Leave(c)
		assert.True(t, offline)
	})

	t.Run("rejoining under another user moves the connection", func(t *testing.T) {
		t.Parallel()

		reg := presence.NewRegistry()
		a, b := uuid.New(), uuid.New()
		c := presence.NewConnectionID()

		require.NoError(t, reg.Join(c, a))
		require.NoError(t, reg.Join(c, b))

		assert.False(t, reg.IsOnline(a))
		assert.True(t, reg.IsOnline(b))
	})

	t.Run("leaving an unknown connection is a no-op", func(t *testing.T) {
		t.Parallel()

		reg := presence.NewRegistry()
		got, offline := reg.Leave(presence.NewConnectionID())

		assert.Equal(t, uuid.Nil, got)
		assert.False(t, offline)
	})

	t.Run("snapshot is detached from the registry", func(t *testing.T) {
		t.Parallel()

		reg := presence.NewRegistry()
		user := uuid.New()
		c := presence.NewConnectionID()
		require.NoError(t, reg.Join(c, user))

		snap := reg.ConnectionsFor(user)
		reg.Leave(c)

		assert.Len(t, snap, 1)
		assert.Empty(t, reg.ConnectionsFor(user))
	})
}

// TestRegistry_RandomSequences checks that after any interleaving of joins and
// leaves a user is online exactly when a model set says it has connections.
func TestRegistry_RandomSequences(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	conns := make([]presence.ConnectionID, 8)
	for i := range conns {
		conns[i] = presence.NewConnectionID()
	}

	reg := presence.NewRegistry()
	model := make(map[presence.ConnectionID]uuid.UUID)

	for step := range 2000 {
		c := conns[rng.IntN(len(conns))]
		if rng.IntN(2) == 0 {
			u := users[rng.IntN(len(users))]
			require.NoError(t, reg.Join(c, u))
			model[c] = u
		} else {
			reg.Leave(c)
			delete(model, c)
		}

		for _, u := range users {
			want := 0
			for _, owner := range model {
				if owner == u {
					want++
				}
			}
			require.Equal(t, want > 0, reg.IsOnline(u), "step %d", step)
			require.Len(t, reg.ConnectionsFor(u), want, "step %d", step)
		}
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	t.Parallel()

	reg := presence.NewRegistry()
	user := uuid.New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := presence.NewConnectionID()
			_ = reg.Join(c, user)
			_ = reg.IsOnline(user)
			reg.Leave(c)
		}()
	}
	wg.Wait()

	assert.False(t, reg.IsOnline(user))
}
