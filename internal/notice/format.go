package notice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crzliang/gzbot/internal/gzctf"
)

const (
	broadcastHeader = "赛事通知自动播报"
	timeLayout      = "06/01/02 15:04:05"
	unknownTitle    = "未知题目"
	unknownCategory = "unknown"
)

// Catalog is the part of the store the formatter looks things up in.
type Catalog interface {
	GameTitle(ctx context.Context, gameID int) (string, error)
	FindChallenge(ctx context.Context, gameID int, title string) (gzctf.Challenge, error)
}

// Stage names the formatting step that failed.
type Stage string

const (
	StageTitle  Stage = "title"
	StageDecode Stage = "decode"
	StageLookup Stage = "lookup"
)

// FormatError is returned by Format. Callers render Fallback instead.
type FormatError struct {
	EventID int
	Kind    Kind
	Stage   Stage
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("formatting %s notice %d at %s: %v", e.Kind, e.EventID, e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type Formatter struct {
	catalog Catalog
	gameID  int
	loc     *time.Location
}

// NewFormatter returns a Formatter for one game. Publish times are shown in
// loc, or UTC when loc is nil.
func NewFormatter(catalog Catalog, gameID int, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{catalog: catalog, gameID: gameID, loc: loc}
}

// Format renders ev for broadcast. An empty message with a nil error means
// the notice must not be broadcast (a new challenge whose row is not
// visible yet).
func (f *Formatter) Format(ctx context.Context, ev Event) (string, error) {
	title, err := f.catalog.GameTitle(ctx, f.gameID)
	if err != nil {
		return "", &FormatError{EventID: ev.ID, Kind: ev.Kind, Stage: StageTitle, Err: err}
	}

	decoded, err := Decode(ev.Payload)
	if err != nil {
		return "", &FormatError{EventID: ev.ID, Kind: ev.Kind, Stage: StageDecode, Err: err}
	}

	body, ok, err := f.body(ctx, ev.Kind, decoded)
	if err != nil {
		return "", &FormatError{EventID: ev.ID, Kind: ev.Kind, Stage: StageLookup, Err: err}
	}
	if !ok {
		return "", nil
	}

	lines := []string{broadcastHeader + " | " + title, "", ev.Label}
	if body != "" {
		lines = append(lines, body)
	}
	lines = append(lines, "时间："+f.timestamp(ev.PublishedAt))
	return strings.Join(lines, "\n"), nil
}

func (f *Formatter) body(ctx context.Context, kind Kind, decoded string) (string, bool, error) {
	switch kind {
	case KindFirstBlood, KindSecondBlood, KindThirdBlood:
		return Blood(kind, decoded), true, nil

	case KindNewChallenge:
		name := ChallengeName(decoded)
		c, err := f.catalog.FindChallenge(ctx, f.gameID, name)
		if errors.Is(err, gzctf.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return ChallengeOpened(name, c.CategoryName()), true, nil

	case KindHintUpdate:
		name := ChallengeName(decoded)
		category := unknownCategory
		c, err := f.catalog.FindChallenge(ctx, f.gameID, name)
		switch {
		case err == nil:
			category = c.CategoryName()
		case !errors.Is(err, gzctf.ErrNotFound):
			return "", false, err
		}
		return HintUpdated(name, category), true, nil

	default:
		return decoded, true, nil
	}
}

// Fallback renders the raw notice fields. It cannot fail.
func (f *Formatter) Fallback(ev Event) string {
	return strings.Join([]string{
		broadcastHeader,
		"┌────────────",
		"│ 类型：" + ev.Label,
		"│ 内容：" + ev.Payload,
		"│ 时间：" + f.timestamp(ev.PublishedAt),
		"└────────────",
	}, "\n")
}

func (f *Formatter) timestamp(t time.Time) string {
	return t.In(f.loc).Format(timeLayout)
}

// Blood renders a first/second/third blood payload of the form
// [team, challenge]. Any other shape is shown as decoded.
func Blood(kind Kind, decoded string) string {
	emoji, name, ok := kind.blood()
	if !ok {
		return decoded
	}
	team, challenge, ok := bloodValues(decoded)
	if !ok {
		return decoded
	}
	return fmt.Sprintf("%s 恭喜 %s 获得 [%s] %s", emoji, team, challenge, name)
}

func ChallengeOpened(name, category string) string {
	return fmt.Sprintf("题目 [%s] 已开放\n分类：%s", orUnknown(name), category)
}

func HintUpdated(name, category string) string {
	return fmt.Sprintf("题目 [%s] 更新了提示\n分类：%s", orUnknown(name), category)
}

func orUnknown(name string) string {
	if name == "" {
		return unknownTitle
	}
	return name
}
