package notify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// ToastFunc is called with each notification the reducer keeps.
type ToastFunc func(Notification)

// Subscriber connects to the task event push channel as one user and feeds
// every received event into a Reducer.
type Subscriber struct {
	endpoint string
	reducer  *Reducer
	toast    ToastFunc
}

// NewSubscriber builds a Subscriber for the websocket endpoint (for example
// ws://localhost:8080/ws/events). toast may be nil.
func NewSubscriber(endpoint string, reducer *Reducer, toast ToastFunc) *Subscriber {
	return &Subscriber{endpoint: endpoint, reducer: reducer, toast: toast}
}

func (s *Subscriber) Reducer() *Reducer { return s.reducer }

// Run dials the push channel and consumes events until ctx is cancelled or
// the server closes the connection. Cancellation and a normal closure
// return nil.
func (s *Subscriber) Run(ctx context.Context) error {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return fmt.Errorf("notify.Subscriber.Run: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("userId", s.reducer.UserID().String())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("notify.Subscriber.Run: dial: %w", err)
	}
	defer conn.CloseNow()

	for {
		_, data, readErr := conn.Read(ctx)
		if readErr != nil {
			if websocket.CloseStatus(readErr) == websocket.StatusNormalClosure || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("notify.Subscriber.Run: read: %w", readErr)
		}
		s.handle(data)
	}
}

func (s *Subscriber) handle(data []byte) {
	ev, err := domain.DecodeTaskEvent(data)
	if err != nil {
		log.Warn().Err(err).Msg("notify: skipping undecodable event")
		return
	}

	n, ok := s.reducer.Apply(ev)
	if !ok {
		return
	}
	if s.toast != nil {
		s.toast(n)
	}
}
