package notice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzliang/gzbot/internal/gzctf"
)

type fakeCatalog struct {
	title      string
	titleErr   error
	challenges map[string]gzctf.Challenge
	lookupErr  error
}

func (c fakeCatalog) GameTitle(_ context.Context, _ int) (string, error) {
	return c.title, c.titleErr
}

func (c fakeCatalog) FindChallenge(_ context.Context, _ int, title string) (gzctf.Challenge, error) {
	if c.lookupErr != nil {
		return gzctf.Challenge{}, c.lookupErr
	}
	ch, ok := c.challenges[title]
	if !ok {
		return gzctf.Challenge{}, gzctf.ErrNotFound
	}
	return ch, nil
}

var published = time.Date(2026, 10, 16, 4, 5, 6, 0, time.UTC)

func newTestFormatter(c fakeCatalog) *Formatter {
	return NewFormatter(c, 5, time.FixedZone("CST", 8*3600))
}

func event(kind Kind, payload string) Event {
	return Event{ID: 7, Kind: kind, Label: kind.Label(), Payload: payload, PublishedAt: published}
}

func TestFormat(t *testing.T) {
	catalog := fakeCatalog{
		title: "Spring CTF",
		challenges: map[string]gzctf.Challenge{
			"Web1":  {Title: "Web1", Category: 3, Score: 100},
			"Crazy": {Title: "Crazy", Category: 42, Score: 1},
		},
	}

	tests := []struct {
		name string
		ev   Event
		body string
	}{
		{
			name: "first blood",
			ev:   event(KindFirstBlood, `["Alpha","Web1"]`),
			body: "🥇 恭喜 Alpha 获得 [Web1] 一血",
		},
		{
			name: "announcement verbatim",
			ev:   event(KindAnnouncement, `"比赛延长"`),
			body: "比赛延长",
		},
		{
			name: "new challenge",
			ev:   event(KindNewChallenge, `["Web1"]`),
			body: "题目 [Web1] 已开放\n分类：Web",
		},
		{
			name: "new challenge with unmapped category",
			ev:   event(KindNewChallenge, "Crazy"),
			body: "题目 [Crazy] 已开放\n分类：unknown category(42)",
		},
		{
			name: "hint update",
			ev:   event(KindHintUpdate, `["Web1"]`),
			body: "题目 [Web1] 更新了提示\n分类：Web",
		},
		{
			name: "hint update for unknown challenge",
			ev:   event(KindHintUpdate, `["Ghost"]`),
			body: "题目 [Ghost] 更新了提示\n分类：unknown",
		},
		{
			name: "unknown kind",
			ev:   event(KindUnknown, "raw text"),
			body: "raw text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestFormatter(catalog).Format(context.Background(), tt.ev)
			require.NoError(t, err)

			want := strings.Join([]string{
				"赛事通知自动播报 | Spring CTF",
				"",
				tt.ev.Kind.Label(),
				tt.body,
				"时间：26/10/16 12:05:06",
			}, "\n")
			assert.Equal(t, want, got)
		})
	}
}

func TestFormatSuppressesMissingNewChallenge(t *testing.T) {
	f := newTestFormatter(fakeCatalog{title: "Spring CTF"})

	got, err := f.Format(context.Background(), event(KindNewChallenge, `["Web9"]`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormatErrors(t *testing.T) {
	dbDown := errors.New("connection refused")

	tests := []struct {
		name    string
		catalog fakeCatalog
		ev      Event
		stage   Stage
	}{
		{
			name:    "title lookup",
			catalog: fakeCatalog{titleErr: dbDown},
			ev:      event(KindAnnouncement, "hello"),
			stage:   StageTitle,
		},
		{
			name:    "undecodable payload",
			catalog: fakeCatalog{title: "Spring CTF"},
			ev:      event(KindFirstBlood, `["\u12"]`),
			stage:   StageDecode,
		},
		{
			name:    "challenge lookup",
			catalog: fakeCatalog{title: "Spring CTF", lookupErr: dbDown},
			ev:      event(KindNewChallenge, "Web1"),
			stage:   StageLookup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFormatter(tt.catalog)
			_, err := f.Format(context.Background(), tt.ev)

			var fe *FormatError
			require.True(t, errors.As(err, &fe), "err = %v, want *FormatError", err)
			assert.Equal(t, tt.stage, fe.Stage)
			assert.Equal(t, tt.ev.Kind, fe.Kind)

			fallback := f.Fallback(tt.ev)
			assert.Contains(t, fallback, tt.ev.Label)
			assert.Contains(t, fallback, tt.ev.Payload)
			assert.Contains(t, fallback, "26/10/16 12:05:06")
		})
	}
}

func TestFallbackWithUnknownLabel(t *testing.T) {
	f := newTestFormatter(fakeCatalog{})
	ev := Event{ID: 1, Label: "🎲 custom", Payload: `\uZZZZ`, PublishedAt: published}

	got := f.Fallback(ev)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "🎲 custom")
	assert.Contains(t, got, "时间：26/10/16 12:05:06")
}

func TestFromNotice(t *testing.T) {
	ev := FromNotice(gzctf.Notice{ID: 3, Type: gzctf.NoticeNewHint, Values: "x", PublishedAt: published})
	assert.Equal(t, KindHintUpdate, ev.Kind)
	assert.Equal(t, "💡 提示更新", ev.Label)

	ev = FromNotice(gzctf.Notice{ID: 4, Type: 99})
	assert.Equal(t, KindUnknown, ev.Kind)
	assert.Equal(t, "❓ 未知类型", ev.Label)
}
