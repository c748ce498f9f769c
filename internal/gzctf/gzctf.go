// Package gzctf defines the slice of the GZCTF competition database the bot
// reads. Everything here describes rows; the store that fetches them lives in
// store.go.
package gzctf

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotConfigured = errors.New("not configured")
)

// ParticipationAccepted is the GZCTF participation status that counts
// towards scoring.
const ParticipationAccepted = 1

// SubmissionAccepted is the submission status of a correct flag.
const SubmissionAccepted = "Accepted"

// NoticeType mirrors the integer "Type" column of "GameNotices".
type NoticeType int

const (
	NoticeNormal NoticeType = iota
	NoticeFirstBlood
	NoticeSecondBlood
	NoticeThirdBlood
	NoticeNewHint
	NoticeNewChallenge
)

var categoryNames = map[int]string{
	0:  "Misc",
	1:  "Crypto",
	2:  "Pwn",
	3:  "Web",
	4:  "Reverse",
	5:  "Blockchain",
	6:  "Forensics",
	7:  "Hardware",
	8:  "Mobile",
	9:  "PPC",
	10: "AI",
	11: "Pentest",
	12: "OSINT",
}

// CategoryName returns the display name of a challenge category.
func CategoryName(category int) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return fmt.Sprintf("unknown category(%d)", category)
}

type Challenge struct {
	ID       int
	Title    string
	Category int
	Score    int
}

func (c Challenge) CategoryName() string {
	return CategoryName(c.Category)
}

type Notice struct {
	ID          int
	Type        NoticeType
	Values      string
	PublishedAt time.Time
}

// Solve is one accepted submission of an accepted participation.
type Solve struct {
	ParticipationID int
	TeamID          int
	TeamName        string
	ChallengeID     int
	Score           int
	SolvedAt        time.Time
}
