package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/presence"
)

// ErrDeliveryFailed is returned by Broadcast when at least one connection
// could not be handed the event. Other connections are unaffected.
var ErrDeliveryFailed = errors.New("ws: delivery failed") //nolint:gochecknoglobals // sentinel error

// IdentityResolver maps the userId handshake parameter to a known user.
type IdentityResolver interface {
	Resolve(ctx context.Context, raw string) (uuid.UUID, bool)
}

// Options tunes per-connection behaviour.
type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OriginPatterns []string
	// Authenticate, when set, reports the user a request's credentials
	// belong to. A handshake userId that disagrees with a valid token is
	// downgraded to anonymous.
	Authenticate func(*http.Request) (uuid.UUID, bool)
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.SendBuffer <= 0 {
		out.SendBuffer = 64
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.PingInterval <= 0 {
		out.PingInterval = 30 * time.Second
	}
	return out
}

// Hub owns every open push-channel connection and fans task events out to
// them. Connections with a resolved identity also join the presence registry.
type Hub struct {
	presence *presence.Registry
	identity IdentityResolver
	opts     Options

	mu      sync.RWMutex
	clients map[presence.ConnectionID]*client
	closed  bool
}

type client struct {
	id     presence.ConnectionID
	userID uuid.UUID // uuid.Nil for anonymous connections
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue hands msg to the connection's writer without blocking.
func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// NewHub creates a new WebSocket hub.
func NewHub(reg *presence.Registry, identity IdentityResolver, opts Options) *Hub {
	return &Hub{
		presence: reg,
		identity: identity,
		opts:     opts.withDefaults(),
		clients:  make(map[presence.ConnectionID]*client),
	}
}

// Presence exposes the registry for read-only callers.
func (h *Hub) Presence() *presence.Registry {
	return h.presence
}

// ConnectionCount returns the number of open connections, anonymous included.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeEvents handles the task event push channel. The optional "userId"
// query parameter identifies the user; a missing or unknown id still gets a
// connection but no targeted events. The parameter alone is trusted: only
// a request that also carries a valid token for a different user is refused
// the identity.
func (h *Hub) ServeEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := h.handshakeIdentity(r)

	// Long-lived connection: lift the server's read/write deadlines.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	c := &client{
		id:     presence.NewConnectionID(),
		userID: userID,
		send:   make(chan []byte, h.opts.SendBuffer),
		done:   make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)

	// Clients never send application messages; CloseRead discards them and
	// cancels ctx once the peer goes away.
	ctx = conn.CloseRead(ctx)

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = conn.Close(websocket.StatusGoingAway, "connection closed")
			return
		case msg := <-c.send:
			if writeErr := h.write(ctx, conn, msg); writeErr != nil {
				log.Debug().Err(writeErr).Str("conn_id", c.id.String()).Msg("websocket write")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			pingErr := conn.Ping(pingCtx)
			cancel()
			if pingErr != nil {
				log.Debug().Err(pingErr).Str("conn_id", c.id.String()).Msg("websocket ping")
				return
			}
		}
	}
}

func (h *Hub) handshakeIdentity(r *http.Request) uuid.UUID {
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		return uuid.Nil
	}

	userID, ok := h.identity.Resolve(r.Context(), raw)
	if !ok {
		log.Debug().Str("user_id", raw).Msg("ws: unresolved handshake identity")
		return uuid.Nil
	}

	if h.opts.Authenticate != nil {
		if authed, found := h.opts.Authenticate(r); found && authed != userID {
			log.Warn().Str("user_id", raw).Str("token_user_id", authed.String()).Msg("ws: handshake identity does not match token")
			return uuid.Nil
		}
	}
	return userID
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c.id] = c

	if err := h.presence.Join(c.id, c.userID); err != nil {
		log.Debug().Str("conn_id", c.id.String()).Msg("ws: anonymous connection, excluded from presence")
	} else {
		log.Info().Str("conn_id", c.id.String()).Str("user_id", c.userID.String()).Msg("ws: user connected")
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()

	if userID, offline := h.presence.Leave(c.id); offline {
		log.Info().Str("user_id", userID.String()).Msg("ws: user offline")
	}
}

// Broadcast delivers ev. TASK_ASSIGNED goes only to the assignee's
// connections and is dropped when the assignee is offline; every other event
// goes to all open connections. It never blocks on a slow connection.
func (h *Hub) Broadcast(_ context.Context, ev domain.TaskEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ws.Hub.Broadcast: encode: %w", err)
	}

	targets := h.targets(ev)
	if len(targets) == 0 {
		log.Debug().Str("event", string(ev.Type())).Str("task_id", ev.EventTaskID().String()).Msg("ws: no recipients, event dropped")
		return nil
	}

	failed := 0
	for _, c := range targets {
		if !c.enqueue(payload) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("ws.Hub.Broadcast: %d of %d connections: %w", failed, len(targets), ErrDeliveryFailed)
	}
	return nil
}

func (h *Hub) targets(ev domain.TaskEvent) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if assigned, ok := ev.(domain.TaskAssigned); ok {
		ids := h.presence.ConnectionsFor(assigned.AssignedToID)
		out := make([]*client, 0, len(ids))
		for _, id := range ids {
			if c, found := h.clients[id]; found {
				out = append(out, c)
			}
		}
		return out
	}

	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Close ends every open connection and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
