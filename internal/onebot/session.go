package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// EventHandler receives events pushed by a session. Each event is handled
// on its own goroutine.
type EventHandler interface {
	HandleEvent(ctx context.Context, s *Session, ev Event)
}

// Session is one connected bot account.
type Session struct {
	selfID int64
	conn   *websocket.Conn
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan ActionResponse
	done    chan struct{}
}

func newSession(selfID int64, conn *websocket.Conn, logger *slog.Logger) *Session {
	return &Session{
		selfID:  selfID,
		conn:    conn,
		logger:  logger.With("self_id", selfID),
		pending: make(map[string]chan ActionResponse),
		done:    make(chan struct{}),
	}
}

func (s *Session) SelfID() int64 { return s.selfID }

// Call sends an action and waits for the matching response.
func (s *Session) Call(ctx context.Context, action string, params any) (json.RawMessage, error) {
	echo := uuid.NewString()
	ch := make(chan ActionResponse, 1)

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	default:
	}
	s.pending[echo] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, echo)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(actionRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", action, err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("writing %s: %w", action, err)
	}

	select {
	case resp := <-ch:
		if resp.Status != "ok" && resp.Status != "async" {
			msg := resp.Wording
			if msg == "" {
				msg = resp.Message
			}
			return nil, &ActionError{Action: action, RetCode: resp.RetCode, Message: msg}
		}
		return resp.Data, nil
	case <-s.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) SendGroupMessage(ctx context.Context, groupID int64, message string) error {
	_, err := s.Call(ctx, "send_group_msg", map[string]any{
		"group_id":    groupID,
		"message":     message,
		"auto_escape": true,
	})
	return err
}

func (s *Session) SendPrivateMessage(ctx context.Context, userID int64, message string) error {
	_, err := s.Call(ctx, "send_private_msg", map[string]any{
		"user_id":     userID,
		"message":     message,
		"auto_escape": true,
	})
	return err
}

func (s *Session) GetStatus(ctx context.Context) (Status, error) {
	var st Status
	data, err := s.Call(ctx, "get_status", struct{}{})
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decoding get_status: %w", err)
	}
	return st, nil
}

func (s *Session) GetLoginInfo(ctx context.Context) (LoginInfo, error) {
	var info LoginInfo
	data, err := s.Call(ctx, "get_login_info", struct{}{})
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decoding get_login_info: %w", err)
	}
	return info, nil
}

// serve reads frames until the connection ends. Pending calls fail with
// ErrSessionClosed afterwards.
func (s *Session) serve(ctx context.Context, handler EventHandler) {
	var wg sync.WaitGroup
	defer func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
		wg.Wait()
	}()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.logger.Debug("onebot read ended", "error", err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Warn("onebot frame not json", "error", err)
			continue
		}

		if f.PostType == "" {
			s.resolve(data)
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("decoding onebot event", "error", err)
			continue
		}
		if ev.PostType == PostTypeMetaEvent {
			s.logger.Debug("onebot meta event", "type", ev.MetaEventType)
			continue
		}
		if handler != nil {
			wg.Go(func() { handler.HandleEvent(ctx, s, ev) })
		}
	}
}

func (s *Session) resolve(data []byte) {
	var resp ActionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		s.logger.Warn("decoding onebot response", "error", err)
		return
	}

	s.mu.Lock()
	ch, ok := s.pending[resp.Echo]
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("onebot response without caller", "echo", resp.Echo)
		return
	}
	select {
	case ch <- resp:
	default:
		s.logger.Warn("duplicate onebot response dropped", "echo", resp.Echo)
	}
}
