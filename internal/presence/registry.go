// Package presence tracks which live connections belong to which user.
package presence

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ConnectionID identifies one open push-channel connection.
type ConnectionID uuid.UUID

func NewConnectionID() ConnectionID { return ConnectionID(uuid.New()) }

func (c ConnectionID) String() string { return uuid.UUID(c).String() }

// ErrNoIdentity is returned by Join when the connection carries no user id.
var ErrNoIdentity = errors.New("presence: connection has no user identity") //nolint:gochecknoglobals // sentinel error

// Registry maps users to their open connections. A user is online iff it has
// at least one joined connection; empty rooms are removed.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[ConnectionID]struct{}
	owner map[ConnectionID]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[uuid.UUID]map[ConnectionID]struct{}),
		owner: make(map[ConnectionID]uuid.UUID),
	}
}

// Join adds conn to userID's room. Joining the same connection twice is a
// no-op; a connection already joined under another user is moved.
func (r *Registry) Join(conn ConnectionID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrNoIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owner[conn]; ok {
		if prev == userID {
			return nil
		}
		r.removeLocked(conn, prev)
	}

	room, ok := r.rooms[userID]
	if !ok {
		room = make(map[ConnectionID]struct{})
		r.rooms[userID] = room
	}
	room[conn] = struct{}{}
	r.owner[conn] = userID
	return nil
}

// Leave removes conn from its room. It reports the user the connection
// belonged to and whether that user went offline as a result. Leaving an
// unknown connection returns uuid.Nil, false.
func (r *Registry) Leave(conn ConnectionID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[conn]
	if !ok {
		return uuid.Nil, false
	}
	return userID, r.removeLocked(conn, userID)
}

func (r *Registry) removeLocked(conn ConnectionID, userID uuid.UUID) bool {
	delete(r.owner, conn)
	room := r.rooms[userID]
	delete(room, conn)
	if len(room) == 0 {
		delete(r.rooms, userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[userID]) > 0
}

// ConnectionsFor returns a snapshot of userID's connections.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[userID]
	out := make([]ConnectionID, 0, len(room))
	for c := range room {
		out = append(out, c)
	}
	return out
}

// OnlineUsers returns a snapshot of every user with an open connection.
func (r *Registry) OnlineUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	return out
}
