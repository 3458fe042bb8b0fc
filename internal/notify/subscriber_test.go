package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/notify"
)

// pushServer accepts one connection, records its userId and writes frames.
func pushServer(t *testing.T, frames []string, gotUser chan<- string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser <- r.URL.Query().Get("userId")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		for _, f := range frames {
			if err := conn.Write(r.Context(), websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
}

func TestSubscriber_Run(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	otherID := uuid.New()
	frames := []string{
		`{"type":"TASK_CREATED","taskId":"` + taskID.String() + `","title":"Ship report","creatorId":"` + alice.String() + `","assignedToId":"` + bob.String() + `"}`,
		`not json`,
		`{"type":"TASK_ARCHIVED","taskId":"` + taskID.String() + `"}`,
		`{"type":"TASK_ASSIGNED","taskId":"` + taskID.String() + `","title":"Ship report","assignedToId":"` + carol.String() + `","assignedById":"` + alice.String() + `"}`,
		`{"type":"TASK_ASSIGNED","taskId":"` + taskID.String() + `","title":"Ship report","assignedToId":"` + bob.String() + `","assignedById":"` + alice.String() + `"}`,
		`{"type":"TASK_ASSIGNED","taskId":"` + otherID.String() + `","title":"Review deck","assignedToId":"` + bob.String() + `","assignedById":"` + carol.String() + `"}`,
	}

	gotUser := make(chan string, 1)
	endpoint := pushServer(t, frames, gotUser)

	var (
		mu     sync.Mutex
		toasts []notify.Notification
	)
	sub := notify.NewSubscriber(endpoint, notify.NewReducer(bob), func(n notify.Notification) {
		mu.Lock()
		defer mu.Unlock()
		toasts = append(toasts, n)
	})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.NoError(t, sub.Run(ctx))
	assert.Equal(t, bob.String(), <-gotUser)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, toasts, 2, "malformed, unknown, irrelevant and already announced frames are skipped")
	assert.Equal(t, domain.EventTaskCreated, toasts[0].Type)
	assert.Equal(t, `A task "Ship report" was created and assigned to you`, toasts[0].Message)
	assert.Equal(t, domain.EventTaskAssigned, toasts[1].Type)
	assert.Equal(t, otherID, toasts[1].TaskID)
	assert.Equal(t, 2, sub.Reducer().Len())
}

func TestSubscriber_RunCancelled(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	sub := notify.NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), notify.NewReducer(bob), nil)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- sub.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSubscriber_DialFailure(t *testing.T) {
	t.Parallel()

	sub := notify.NewSubscriber("ws://127.0.0.1:1/ws/events", notify.NewReducer(bob), nil)
	err := sub.Run(t.Context())
	assert.Error(t, err)
}
