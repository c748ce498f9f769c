// Package notice detects, deduplicates and renders competition notices.
package notice

import (
	"strings"
	"time"

	"github.com/crzliang/gzbot/internal/gzctf"
)

// Kind classifies a notice once, when it enters the bot.
type Kind int

const (
	KindUnknown Kind = iota
	KindAnnouncement
	KindFirstBlood
	KindSecondBlood
	KindThirdBlood
	KindNewChallenge
	KindHintUpdate
)

var kindLabels = map[Kind]string{
	KindAnnouncement: "📢 公告通知",
	KindFirstBlood:   "🥇 一血通知",
	KindSecondBlood:  "🥈 二血通知",
	KindThirdBlood:   "🥉 三血通知",
	KindNewChallenge: "🆕 新题目开放",
	KindHintUpdate:   "💡 提示更新",
	KindUnknown:      "❓ 未知类型",
}

var kindNames = map[Kind]string{
	KindAnnouncement: "announcement",
	KindFirstBlood:   "first_blood",
	KindSecondBlood:  "second_blood",
	KindThirdBlood:   "third_blood",
	KindNewChallenge: "new_challenge",
	KindHintUpdate:   "hint_update",
	KindUnknown:      "unknown",
}

// KindFromType maps the store's numeric notice type.
func KindFromType(t gzctf.NoticeType) Kind {
	switch t {
	case gzctf.NoticeNormal:
		return KindAnnouncement
	case gzctf.NoticeFirstBlood:
		return KindFirstBlood
	case gzctf.NoticeSecondBlood:
		return KindSecondBlood
	case gzctf.NoticeThirdBlood:
		return KindThirdBlood
	case gzctf.NoticeNewHint:
		return KindHintUpdate
	case gzctf.NoticeNewChallenge:
		return KindNewChallenge
	default:
		return KindUnknown
	}
}

// ParseKind classifies a free-text, possibly emoji-decorated label such as
// "🥇 一血通知". Matching is by substring.
func ParseKind(label string) Kind {
	switch {
	case strings.Contains(label, "一血"):
		return KindFirstBlood
	case strings.Contains(label, "二血"):
		return KindSecondBlood
	case strings.Contains(label, "三血"):
		return KindThirdBlood
	case strings.Contains(label, "新题目开放"):
		return KindNewChallenge
	case strings.Contains(label, "提示更新"):
		return KindHintUpdate
	case strings.Contains(label, "公告"):
		return KindAnnouncement
	}
	for k, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(label), name) {
			return k
		}
	}
	return KindUnknown
}

// Label is the decorated heading shown in chat.
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return kindLabels[KindUnknown]
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return kindNames[KindUnknown]
}

// blood returns the medal and blood name for the three blood kinds.
func (k Kind) blood() (emoji, name string, ok bool) {
	switch k {
	case KindFirstBlood:
		return "🥇", "一血", true
	case KindSecondBlood:
		return "🥈", "二血", true
	case KindThirdBlood:
		return "🥉", "三血", true
	}
	return "", "", false
}

// Event is a classified notice. It is never mutated after ingestion.
type Event struct {
	ID          int
	Kind        Kind
	Label       string
	Payload     string
	PublishedAt time.Time
}

// FromNotice classifies a store row.
func FromNotice(n gzctf.Notice) Event {
	kind := KindFromType(n.Type)
	return Event{
		ID:          n.ID,
		Kind:        kind,
		Label:       kind.Label(),
		Payload:     n.Values,
		PublishedAt: n.PublishedAt,
	}
}
