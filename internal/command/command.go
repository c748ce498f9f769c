// Package command answers the chat commands sent to the bot.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/crzliang/gzbot/internal/broadcast"
	"github.com/crzliang/gzbot/internal/gzctf"
	"github.com/crzliang/gzbot/internal/journal"
	"github.com/crzliang/gzbot/internal/onebot"
	"github.com/crzliang/gzbot/internal/ranking"
)

const (
	msgNoDSN       = "未配置 POSTGRES_DSN。"
	msgNoGame      = "未设置 TARGET_GAME_ID。"
	msgQueryFailed = "查询失败，请稍后再试。"
	msgUsage       = "用法：/broadcast on|off|status"

	recentDeliveries = 5
)

type Catalog interface {
	GameTitle(ctx context.Context, gameID int) (string, error)
	ListChallenges(ctx context.Context, gameID int) ([]gzctf.Challenge, error)
}

type Leaderboard interface {
	Rankings(ctx context.Context, gameID int, prefix string) ([]ranking.Entry, error)
}

// Toggle is the broadcast switch, implemented by broadcast.Poller.
type Toggle interface {
	SetEnabled(on bool) bool
	Configured() bool
	Status() broadcast.Status
}

type Journal interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Request is one incoming chat message.
type Request struct {
	GroupID int64 // zero for private messages
	UserID  int64
	Text    string
}

type Options struct {
	GameID        int
	AllowedGroups []int64
	Admins        []int64
	Location      *time.Location

	// Journal and Hub are optional.
	Journal Journal
	Hub     *onebot.Hub
}

type Handler struct {
	catalog     Catalog
	leaderboard Leaderboard
	toggle      Toggle
	opts        Options
	logger      *slog.Logger
}

// NewHandler returns a Handler. catalog and leaderboard are nil when no
// competition store is configured.
func NewHandler(catalog Catalog, leaderboard Leaderboard, toggle Toggle, logger *slog.Logger, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Handler{
		catalog:     catalog,
		leaderboard: leaderboard,
		toggle:      toggle,
		opts:        opts,
		logger:      logger,
	}
}

// HandleEvent replies to message events on the session they came from.
func (h *Handler) HandleEvent(ctx context.Context, s *onebot.Session, ev onebot.Event) {
	if ev.PostType != onebot.PostTypeMessage {
		return
	}
	req := Request{UserID: ev.UserID, Text: ev.RawMessage}
	if ev.IsGroupMessage() {
		req.GroupID = ev.GroupID
	}

	reply, ok := h.Handle(ctx, req)
	if !ok {
		return
	}

	var err error
	if req.GroupID != 0 {
		err = s.SendGroupMessage(ctx, req.GroupID, reply)
	} else {
		err = s.SendPrivateMessage(ctx, req.UserID, reply)
	}
	if err != nil {
		h.logger.Warn("sending reply failed", "group_id", req.GroupID, "user_id", req.UserID, "error", err)
	}
}

// Handle returns the reply to req. ok is false when the message is not a
// command or the sender may not use it; nothing is sent back then.
func (h *Handler) Handle(ctx context.Context, req Request) (reply string, ok bool) {
	fields := strings.Fields(req.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	name, args := strings.TrimPrefix(fields[0], "/"), fields[1:]

	if !h.groupAllowed(req) {
		h.logger.Debug("command declined", "command", name, "group_id", req.GroupID)
		return "", false
	}

	switch name {
	case "gamechallenges", "gc":
		return h.challenges(ctx), true
	case "rank":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		return h.rank(ctx, prefix), true
	case "broadcast":
		if !slices.Contains(h.opts.Admins, req.UserID) {
			h.logger.Debug("broadcast toggle declined", "user_id", req.UserID)
			return "", false
		}
		return h.broadcast(args), true
	case "botstatus":
		return h.botStatus(ctx, req), true
	}
	return "", false
}

// groupAllowed applies the allow-list. With an empty list every chat may
// use the bot; otherwise only group messages from listed groups.
func (h *Handler) groupAllowed(req Request) bool {
	if len(h.opts.AllowedGroups) == 0 {
		return true
	}
	return req.GroupID != 0 && slices.Contains(h.opts.AllowedGroups, req.GroupID)
}

// gameTitle resolves the configured game. A non-empty msg is the reply to
// send instead of continuing.
func (h *Handler) gameTitle(ctx context.Context) (title, msg string) {
	if h.catalog == nil || h.leaderboard == nil {
		return "", msgNoDSN
	}
	if h.opts.GameID == 0 {
		return "", msgNoGame
	}
	title, err := h.catalog.GameTitle(ctx, h.opts.GameID)
	if errors.Is(err, gzctf.ErrNotFound) {
		return "", fmt.Sprintf("查询失败：未找到ID为 %d 的比赛", h.opts.GameID)
	}
	if err != nil {
		h.logger.Error("loading game title", "game_id", h.opts.GameID, "error", err)
		return "", msgQueryFailed
	}
	return title, ""
}

func (h *Handler) challenges(ctx context.Context) string {
	title, msg := h.gameTitle(ctx)
	if msg != "" {
		return msg
	}
	list, err := h.catalog.ListChallenges(ctx, h.opts.GameID)
	if err != nil {
		h.logger.Error("listing challenges", "game_id", h.opts.GameID, "error", err)
		return msgQueryFailed
	}
	if len(list) == 0 {
		return fmt.Sprintf("在比赛 '%s' 中未找到任何赛题。", title)
	}
	return FormatChallenges(title, list)
}

func (h *Handler) rank(ctx context.Context, prefix string) string {
	title, msg := h.gameTitle(ctx)
	if msg != "" {
		return msg
	}
	entries, err := h.leaderboard.Rankings(ctx, h.opts.GameID, prefix)
	if err != nil {
		h.logger.Error("computing rankings", "game_id", h.opts.GameID, "prefix", prefix, "error", err)
		return msgQueryFailed
	}
	if len(entries) == 0 {
		return fmt.Sprintf("比赛 '%s' 暂无排行榜数据。", title)
	}
	return FormatRanking(title, entries, prefix != "")
}

func (h *Handler) broadcast(args []string) string {
	if len(args) != 1 {
		return msgUsage
	}
	switch args[0] {
	case "on":
		if !h.toggle.Configured() {
			return "无法开启播报：未配置 POSTGRES_DSN 或 TARGET_GAME_ID。"
		}
		if !h.toggle.SetEnabled(true) {
			return "赛事通知自动播报已处于开启状态。"
		}
		return "已开启赛事通知自动播报。"
	case "off":
		if !h.toggle.SetEnabled(false) {
			return "赛事通知自动播报已处于关闭状态。"
		}
		return "已关闭赛事通知自动播报。"
	case "status":
		return h.statusLines(h.toggle.Status())
	}
	return msgUsage
}

func (h *Handler) statusLines(st broadcast.Status) string {
	state := "关闭"
	if st.Enabled {
		state = "开启"
	}
	watermark := "未初始化"
	if !st.Watermark.IsZero() {
		watermark = st.Watermark.In(h.opts.Location).Format(time.DateTime)
	}
	return strings.Join([]string{
		"播报状态：" + state,
		fmt.Sprintf("监听比赛：%d", st.GameID),
		fmt.Sprintf("目标群数：%d", len(st.Groups)),
		"检查水位：" + watermark,
		fmt.Sprintf("已处理通知：%d", st.DedupSize),
	}, "\n")
}

func (h *Handler) botStatus(ctx context.Context, req Request) string {
	st := h.toggle.Status()
	lines := []string{fmt.Sprintf("已连接机器人：%v", st.Sessions)}

	if h.opts.Hub != nil {
		for _, s := range h.opts.Hub.All() {
			lines = append(lines, h.sessionReport(ctx, s)...)
		}
	}
	if req.GroupID != 0 {
		lines = append(lines, fmt.Sprintf("触发群：%d", req.GroupID))
	}
	lines = append(lines, h.statusLines(st))

	if h.opts.Journal != nil {
		recent, err := h.opts.Journal.Recent(ctx, recentDeliveries)
		if err != nil {
			h.logger.Warn("reading delivery journal", "error", err)
			lines = append(lines, "最近播报：读取失败")
		} else {
			lines = append(lines, fmt.Sprintf("最近播报：%d 条", len(recent)))
			for _, e := range recent {
				lines = append(lines, fmt.Sprintf("  #%d %s %s %d/%d",
					e.NoticeID, e.Kind, e.Outcome, e.Delivered, e.Attempted))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) sessionReport(ctx context.Context, s *onebot.Session) []string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var lines []string
	if st, err := s.GetStatus(ctx); err != nil {
		lines = append(lines, fmt.Sprintf("[%d] get_status failed: %v", s.SelfID(), err))
	} else {
		lines = append(lines, fmt.Sprintf("[%d] get_status ok: online=%t good=%t", s.SelfID(), st.Online, st.Good))
	}
	if info, err := s.GetLoginInfo(ctx); err != nil {
		lines = append(lines, fmt.Sprintf("[%d] get_login_info failed: %v", s.SelfID(), err))
	} else {
		lines = append(lines, fmt.Sprintf("[%d] get_login_info ok: %s (%d)", s.SelfID(), info.Nickname, info.UserID))
	}
	return lines
}
