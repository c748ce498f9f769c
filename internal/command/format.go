package command

import (
	"fmt"
	"slices"
	"strings"

	"github.com/crzliang/gzbot/internal/gzctf"
	"github.com/crzliang/gzbot/internal/ranking"
)

// FormatChallenges groups challenges by category in ascending category
// order. Within a category the store order is kept.
func FormatChallenges(title string, challenges []gzctf.Challenge) string {
	groups := make(map[int][]gzctf.Challenge)
	for _, c := range challenges {
		groups[c.Category] = append(groups[c.Category], c)
	}
	categories := make([]int, 0, len(groups))
	for cat := range groups {
		categories = append(categories, cat)
	}
	slices.Sort(categories)

	lines := []string{fmt.Sprintf("--- %s -- 题目列表 ---", title)}
	for _, cat := range categories {
		lines = append(lines, "", fmt.Sprintf("【%s】", gzctf.CategoryName(cat)))
		for _, c := range groups[cat] {
			lines = append(lines, fmt.Sprintf("  %s -- %d分", c.Title, c.Score))
		}
	}
	return strings.Join(lines, "\n")
}

// FormatRanking renders a leaderboard. Member ids are listed under each
// team when withMembers is set.
func FormatRanking(title string, entries []ranking.Entry, withMembers bool) string {
	lines := []string{title + " - 排行榜", strings.Repeat("=", 30)}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s -- %d分", medal(e.Rank), e.TeamName, e.Score))
		if withMembers && len(e.Members) > 0 {
			lines = append(lines, "    成员："+e.MemberList())
		}
	}
	return strings.Join(lines, "\n")
}

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return fmt.Sprintf("%d.", rank)
}
