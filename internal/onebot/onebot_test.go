package onebot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	events chan Event
}

func (h *recordingHandler) HandleEvent(_ context.Context, _ *Session, ev Event) {
	h.events <- ev
}

func startServer(t *testing.T, token string) (*httptest.Server, *Hub, *recordingHandler) {
	t.Helper()
	hub := NewHub()
	events := &recordingHandler{events: make(chan Event, 4)}
	srv := httptest.NewServer(NewHandler(hub, events, token, discardLogger()))
	t.Cleanup(srv.Close)
	return srv, hub, events
}

func dial(ctx context.Context, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
}

func botHeader(selfID, token string) http.Header {
	h := http.Header{}
	h.Set("X-Self-ID", selfID)
	h.Set("X-Client-Role", "Universal")
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func TestHandlerRejectsBadToken(t *testing.T) {
	srv, hub, _ := startServer(t, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := dial(ctx, srv, botHeader("10001", "wrong"))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, hub.Len())
}

func TestHandlerRequiresSelfID(t *testing.T) {
	srv, _, _ := startServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := dial(ctx, srv, http.Header{})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionCallRoundTrip(t *testing.T) {
	srv, hub, _ := startServer(t, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dial(ctx, srv, botHeader("10001", "secret"))
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	s, ok := hub.Get(10001)
	require.True(t, ok)

	// Fake bot client: answer send_group_msg with ok and anything else with a failure.
	requests := make(chan actionRequest, 2)
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req actionRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}
			requests <- req
			resp := ActionResponse{Status: "ok", Echo: req.Echo, Data: json.RawMessage(`{"message_id":1}`)}
			if req.Action != "send_group_msg" {
				resp = ActionResponse{Status: "failed", RetCode: 100, Wording: "not supported", Echo: req.Echo}
			}
			out, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	}()

	require.NoError(t, s.SendGroupMessage(ctx, 2001, "赛事通知自动播报"))
	req := <-requests
	assert.Equal(t, "send_group_msg", req.Action)
	params := req.Params.(map[string]any)
	assert.Equal(t, float64(2001), params["group_id"])
	assert.Equal(t, "赛事通知自动播报", params["message"])

	_, err = s.GetStatus(ctx)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, 100, actionErr.RetCode)
	assert.Equal(t, "not supported", actionErr.Message)

	assert.Len(t, hub.Sessions(), 1)
	assert.Equal(t, int64(10001), hub.Sessions()[0].SelfID())
}

func TestSessionDispatchesEvents(t *testing.T) {
	srv, hub, events := startServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dial(ctx, srv, botHeader("10002", ""))
	require.NoError(t, err)
	defer conn.CloseNow()

	frames := []string{
		`{"time":1,"self_id":10002,"post_type":"meta_event","meta_event_type":"heartbeat"}`,
		`{"time":2,"self_id":10002,"post_type":"message","message_type":"group","group_id":2001,"user_id":42,"raw_message":"/rank","sender":{"user_id":42,"nickname":"alice"}}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(f)))
	}

	select {
	case ev := <-events.events:
		assert.True(t, ev.IsGroupMessage())
		assert.Equal(t, int64(2001), ev.GroupID)
		assert.Equal(t, "/rank", ev.RawMessage)
		assert.Equal(t, "alice", ev.Sender.Nickname)
	case <-ctx.Done():
		t.Fatal("event not dispatched")
	}

	conn.Close(websocket.StatusNormalClosure, "done")
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCallAfterDisconnect(t *testing.T) {
	srv, hub, _ := startServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dial(ctx, srv, botHeader("10003", ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	s, _ := hub.Get(10003)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	err = s.SendGroupMessage(ctx, 2001, "late")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestDuplicateResponseDoesNotStallSession(t *testing.T) {
	srv, hub, events := startServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dial(ctx, srv, botHeader("10004", ""))
	require.NoError(t, err)
	defer conn.CloseNow()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	s, _ := hub.Get(10004)

	// A caller that has not read its response yet.
	waiting := make(chan ActionResponse, 1)
	s.mu.Lock()
	s.pending["dup"] = waiting
	s.mu.Unlock()

	frames := []string{
		`{"status":"ok","retcode":0,"data":{},"echo":"dup"}`,
		`{"status":"ok","retcode":0,"data":{},"echo":"dup"}`,
		`{"time":3,"self_id":10004,"post_type":"message","message_type":"private","user_id":42,"raw_message":"/gc"}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(f)))
	}

	select {
	case ev := <-events.events:
		assert.Equal(t, "/gc", ev.RawMessage)
	case <-ctx.Done():
		t.Fatal("read loop stalled on a duplicate response")
	}
	assert.Len(t, waiting, 1)
}
