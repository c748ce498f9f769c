package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crzliang/gzbot/internal/gzctf"
	"github.com/crzliang/gzbot/internal/journal"
	"github.com/crzliang/gzbot/internal/notice"
)

// NoticeSource lists the notices of a game published strictly after since,
// newest first.
type NoticeSource interface {
	ListNotices(ctx context.Context, gameID int, since time.Time) ([]gzctf.Notice, error)
}

type Renderer interface {
	Format(ctx context.Context, ev notice.Event) (string, error)
	Fallback(ev notice.Event) string
}

type Deliverer interface {
	Deliver(ctx context.Context, message string, groups []int64) Result
}

// Recorder persists the outcome of every processed notice.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Recorders fans an entry out to several recorders.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, e journal.Entry) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// State is the mutable engine state shared by poll cycles and the toggle.
type State struct {
	enabled   atomic.Bool
	resetAt   atomic.Pointer[time.Time]
	Watermark *notice.Watermark
	Dedup     *notice.DedupCache
}

func NewState(minWindow time.Duration, ceiling, keep int) *State {
	return &State{
		Watermark: notice.NewWatermark(minWindow),
		Dedup:     notice.NewDedupCache(ceiling, keep),
	}
}

type Options struct {
	GameID   int
	Groups   []int64
	Interval time.Duration
	// Timeout bounds a single cycle. It defaults to 30s.
	Timeout time.Duration

	// Recorder and Sessions are optional.
	Recorder Recorder
	Sessions SessionSource
}

// Poller runs the poll, format and broadcast cycle on a fixed interval.
// At most one cycle is in flight at any time.
type Poller struct {
	state     *State
	source    NoticeSource
	renderer  Renderer
	deliverer Deliverer
	recorder  Recorder
	sessions  SessionSource
	gameID    int
	groups    []int64
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	running sync.Mutex
	toggle  sync.Mutex
}

// NewPoller returns a Poller. source may be nil when no competition store
// is configured; the poller then never runs a cycle.
func NewPoller(state *State, source NoticeSource, renderer Renderer, deliverer Deliverer, logger *slog.Logger, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Poller{
		state:     state,
		source:    source,
		renderer:  renderer,
		deliverer: deliverer,
		recorder:  opts.Recorder,
		sessions:  opts.Sessions,
		gameID:    opts.GameID,
		groups:    opts.Groups,
		interval:  opts.Interval,
		timeout:   opts.Timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval, "game_id", p.gameID, "groups", len(p.groups))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one cycle if broadcasting is enabled and no cycle is running.
// The cycle is cancelled once the poller timeout elapses.
func (p *Poller) Tick(ctx context.Context) {
	if !p.Configured() || !p.Enabled() {
		return
	}
	if !p.running.TryLock() {
		p.logger.Warn("previous poll cycle still running, skipping tick")
		return
	}
	defer p.running.Unlock()
	if !p.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.Cycle(ctx, p.now()); err != nil {
		p.logger.Error("poll cycle abandoned", "error", err)
	}
}

// Cycle processes the notices published since the watermark. now must be
// captured before the query so notices published while it runs fall into
// the next window. The watermark advances even when the query fails.
// Processing stops at the first notice seen after broadcasting was disabled.
func (p *Poller) Cycle(ctx context.Context, now time.Time) error {
	if !p.Configured() {
		return gzctf.ErrNotConfigured
	}
	if at := p.state.resetAt.Swap(nil); at != nil {
		p.state.Watermark.Reset(*at)
	}
	since, ok := p.state.Watermark.Since(now)
	if !ok {
		p.logger.Debug("watermark initialised, skipping cycle", "at", now.UTC())
		return nil
	}
	defer p.state.Watermark.Advance(now)

	notices, err := p.source.ListNotices(ctx, p.gameID, since)
	if err != nil {
		return fmt.Errorf("listing notices since %s: %w", since.Format(time.RFC3339), err)
	}
	if len(notices) > 0 {
		p.logger.Debug("notices found", "count", len(notices), "since", since)
	}

	for _, n := range notices {
		if !p.Enabled() {
			p.logger.Info("broadcast disabled mid-cycle, dropping remaining notices")
			return nil
		}
		if p.state.Dedup.Seen(n.ID) {
			continue
		}
		p.process(ctx, notice.FromNotice(n))
		p.state.Dedup.Add(n.ID)
	}
	return nil
}

func (p *Poller) process(ctx context.Context, ev notice.Event) {
	entry := journal.Entry{
		NoticeID: ev.ID,
		Kind:     ev.Kind.String(),
		Outcome:  journal.OutcomeDelivered,
	}

	text, err := p.renderer.Format(ctx, ev)
	switch {
	case err != nil:
		p.logger.Warn("formatting notice failed, sending fallback", "notice_id", ev.ID, "kind", ev.Kind, "error", err)
		text = p.renderer.Fallback(ev)
		entry.Outcome = journal.OutcomeFallback
	case text == "":
		p.logger.Info("notice suppressed", "notice_id", ev.ID, "kind", ev.Kind)
		entry.Outcome = journal.OutcomeSuppressed
		p.record(ctx, entry)
		return
	}

	res := p.deliverer.Deliver(ctx, text, p.groups)
	entry.Delivered = res.Delivered
	entry.Attempted = res.Attempted
	p.record(ctx, entry)
}

func (p *Poller) record(ctx context.Context, e journal.Entry) {
	if p.recorder == nil {
		return
	}
	e.RecordedAt = p.now()
	if err := p.recorder.Record(ctx, e); err != nil {
		p.logger.Warn("recording delivery", "notice_id", e.NoticeID, "error", err)
	}
}

// SetEnabled flips the broadcast toggle and reports whether it changed. It
// never waits for a running cycle. Turning it on schedules a watermark reset
// to the current time, applied by the next cycle, so no backlog is replayed;
// turning it off keeps the dedup cache and the watermark.
func (p *Poller) SetEnabled(on bool) bool {
	p.toggle.Lock()
	defer p.toggle.Unlock()

	if p.state.enabled.Load() == on {
		return false
	}
	if on {
		at := p.now()
		p.state.resetAt.Store(&at)
	}
	p.state.enabled.Store(on)
	p.logger.Info("broadcast toggled", "enabled", on)
	return true
}

func (p *Poller) Enabled() bool { return p.state.enabled.Load() }

// Configured reports whether there is a store and a game to watch.
func (p *Poller) Configured() bool {
	return p.source != nil && p.gameID != 0
}

type Status struct {
	Enabled    bool      `json:"enabled"`
	Configured bool      `json:"configured"`
	GameID     int       `json:"gameId"`
	Groups     []int64   `json:"groups"`
	Watermark  time.Time `json:"watermark"`
	DedupSize  int       `json:"dedupSize"`
	Sessions   []int64   `json:"sessions"`
}

func (p *Poller) Status() Status {
	st := Status{
		Enabled:    p.Enabled(),
		Configured: p.Configured(),
		GameID:     p.gameID,
		Groups:     p.groups,
		Watermark:  p.state.Watermark.Last(),
		DedupSize:  p.state.Dedup.Len(),
		Sessions:   []int64{},
	}
	if at := p.state.resetAt.Load(); at != nil {
		st.Watermark = at.UTC()
	}
	if p.sessions != nil {
		for _, s := range p.sessions.Sessions() {
			st.Sessions = append(st.Sessions, s.SelfID())
		}
	}
	return st
}
