// Package broadcast fans rendered notices out to chat groups and drives the
// periodic poll cycle.
package broadcast

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Session is one live connection to a chat bot account.
type Session interface {
	SelfID() int64
	SendGroupMessage(ctx context.Context, groupID int64, message string) error
}

// SessionSource lists the currently connected sessions.
type SessionSource interface {
	Sessions() []Session
}

type Result struct {
	Delivered int `json:"delivered"`
	Attempted int `json:"attempted"`
}

// Dispatcher delivers a message to every (session, group) pair. A failed
// pair is logged and does not affect the others.
type Dispatcher struct {
	sessions SessionSource
	logger   *slog.Logger
	timeout  time.Duration
	limit    int
}

// NewDispatcher returns a Dispatcher. timeout bounds each send; limit caps
// concurrent sends (0 means unlimited).
func NewDispatcher(sessions SessionSource, logger *slog.Logger, timeout time.Duration, limit int) *Dispatcher {
	return &Dispatcher{sessions: sessions, logger: logger, timeout: timeout, limit: limit}
}

func (d *Dispatcher) Deliver(ctx context.Context, message string, groups []int64) Result {
	sessions := d.sessions.Sessions()
	res := Result{Attempted: len(sessions) * len(groups)}
	if res.Attempted == 0 {
		d.logger.Warn("no delivery targets", "sessions", len(sessions), "groups", len(groups))
		return res
	}

	var delivered atomic.Int64
	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}

	for _, s := range sessions {
		for _, groupID := range groups {
			g.Go(func() error {
				sendCtx := ctx
				if d.timeout > 0 {
					var cancel context.CancelFunc
					sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
					defer cancel()
				}
				if err := s.SendGroupMessage(sendCtx, groupID, message); err != nil {
					d.logger.Warn("group delivery failed",
						"self_id", s.SelfID(),
						"group_id", groupID,
						"error", err,
					)
					return nil
				}
				delivered.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()

	res.Delivered = int(delivered.Load())
	d.logger.Info("broadcast delivered", "delivered", res.Delivered, "attempted", res.Attempted)
	return res
}
