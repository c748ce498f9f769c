// Package ranking turns raw submission history into an ordered, tie-broken
// leaderboard.
package ranking

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/crzliang/gzbot/internal/gzctf"
)

type Entry struct {
	Rank      int       `json:"rank"`
	TeamID    int       `json:"teamId"`
	TeamName  string    `json:"teamName"`
	Score     int       `json:"score"`
	LastSolve time.Time `json:"lastSolve"`
	Members   []string  `json:"members,omitempty"`
}

// MemberList joins the member identifiers for display.
func (e Entry) MemberList() string {
	return strings.Join(e.Members, ", ")
}

type Options struct {
	// MemberPrefix keeps only teams with at least one member whose
	// identifier starts with it. Ranks are recomputed within the subset.
	MemberPrefix string
	WithMembers  bool
}

type firstSolve struct {
	participation int
	challenge     int
}

// Compute ranks teams by total score (desc), time of their last counted
// solve (asc, missing last) and team name (asc). Only the earliest accepted
// solve per (participation, challenge) counts, and teams without a positive
// score are left out.
func Compute(solves []gzctf.Solve, members map[int][]string, opts Options) []Entry {
	first := make(map[firstSolve]gzctf.Solve, len(solves))
	for _, s := range solves {
		k := firstSolve{participation: s.ParticipationID, challenge: s.ChallengeID}
		cur, ok := first[k]
		if !ok || earlier(s.SolvedAt, cur.SolvedAt) {
			first[k] = s
		}
	}

	teams := make(map[int]*Entry)
	for _, s := range first {
		if opts.MemberPrefix != "" && !hasMemberWithPrefix(members[s.TeamID], opts.MemberPrefix) {
			continue
		}
		e, ok := teams[s.TeamID]
		if !ok {
			e = &Entry{TeamID: s.TeamID, TeamName: s.TeamName}
			teams[s.TeamID] = e
		}
		e.Score += s.Score
		if s.SolvedAt.After(e.LastSolve) {
			e.LastSolve = s.SolvedAt
		}
	}

	entries := make([]Entry, 0, len(teams))
	for _, e := range teams {
		if e.Score <= 0 {
			continue
		}
		if opts.WithMembers {
			e.Members = uniqueSorted(members[e.TeamID])
		}
		entries = append(entries, *e)
	}

	slices.SortFunc(entries, compare)
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func compare(a, b Entry) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	switch {
	case a.LastSolve.IsZero() && !b.LastSolve.IsZero():
		return 1
	case !a.LastSolve.IsZero() && b.LastSolve.IsZero():
		return -1
	}
	if c := a.LastSolve.Compare(b.LastSolve); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TeamName, b.TeamName); c != 0 {
		return c
	}
	return cmp.Compare(a.TeamID, b.TeamID)
}

// earlier reports whether a precedes b, treating the zero time as missing.
func earlier(a, b time.Time) bool {
	if b.IsZero() {
		return !a.IsZero()
	}
	return !a.IsZero() && a.Before(b)
}

func hasMemberWithPrefix(ids []string, prefix string) bool {
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func uniqueSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
