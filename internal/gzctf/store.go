package gzctf

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Store is the read-only view of the competition database.
type Store interface {
	GameTitle(ctx context.Context, gameID int) (string, error)
	ListChallenges(ctx context.Context, gameID int) ([]Challenge, error)
	FindChallenge(ctx context.Context, gameID int, title string) (Challenge, error)
	ListNotices(ctx context.Context, gameID int, since time.Time) ([]Notice, error)
	AcceptedSolves(ctx context.Context, gameID int) ([]Solve, error)
	TeamMembers(ctx context.Context, gameID int) (map[int][]string, error)
}

// GormStore implements Store with raw SQL over gorm, so the same queries run
// against Postgres in production and SQLite in tests.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GameTitle(ctx context.Context, gameID int) (string, error) {
	var rows []struct{ Title string }
	err := s.db.WithContext(ctx).Raw(`
		SELECT g."Title" AS title
		FROM "Games" g
		WHERE g."Id" = ?
	`, gameID).Scan(&rows).Error
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", ErrNotFound
	}
	return rows[0].Title, nil
}

type challengeRow struct {
	ID            int
	Title         string
	Category      int
	OriginalScore int
}

func (r challengeRow) challenge() Challenge {
	return Challenge{ID: r.ID, Title: r.Title, Category: r.Category, Score: r.OriginalScore}
}

func (s *GormStore) ListChallenges(ctx context.Context, gameID int) ([]Challenge, error) {
	var rows []challengeRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT gc."Id" AS id, gc."Title" AS title, gc."Category" AS category,
			gc."OriginalScore" AS original_score
		FROM "GameChallenges" gc
		WHERE gc."GameId" = ?
		ORDER BY gc."Id" DESC
	`, gameID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	challenges := make([]Challenge, 0, len(rows))
	for _, r := range rows {
		challenges = append(challenges, r.challenge())
	}
	return challenges, nil
}

func (s *GormStore) FindChallenge(ctx context.Context, gameID int, title string) (Challenge, error) {
	var rows []challengeRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT gc."Id" AS id, gc."Title" AS title, gc."Category" AS category,
			gc."OriginalScore" AS original_score
		FROM "GameChallenges" gc
		WHERE gc."GameId" = ? AND gc."Title" = ?
		LIMIT 1
	`, gameID, title).Scan(&rows).Error
	if err != nil {
		return Challenge{}, err
	}
	if len(rows) == 0 {
		return Challenge{}, ErrNotFound
	}
	return rows[0].challenge(), nil
}

func (s *GormStore) ListNotices(ctx context.Context, gameID int, since time.Time) ([]Notice, error) {
	var rows []struct {
		ID          int
		Type        int
		Values      string
		PublishedAt time.Time
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT gn."Id" AS id, gn."Type" AS type, COALESCE(gn."Values", '') AS "values",
			gn."PublishTimeUtc" AS published_at
		FROM "GameNotices" gn
		WHERE gn."GameId" = ? AND gn."PublishTimeUtc" > ?
		ORDER BY gn."PublishTimeUtc" DESC, gn."Id" DESC
	`, gameID, since.UTC()).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	notices := make([]Notice, 0, len(rows))
	for _, r := range rows {
		notices = append(notices, Notice{
			ID:          r.ID,
			Type:        NoticeType(r.Type),
			Values:      r.Values,
			PublishedAt: r.PublishedAt.UTC(),
		})
	}
	return notices, nil
}

// AcceptedSolves returns every accepted submission of the game's accepted
// participations. Duplicates per (participation, challenge) are kept; the
// ranking engine collapses them.
func (s *GormStore) AcceptedSolves(ctx context.Context, gameID int) ([]Solve, error) {
	var rows []struct {
		ParticipationID int
		TeamID          int
		TeamName        string
		ChallengeID     int
		OriginalScore   int
		SubmitTimeUtc   time.Time
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT p."Id" AS participation_id, t."Id" AS team_id, t."Name" AS team_name,
			gc."Id" AS challenge_id, gc."OriginalScore" AS original_score,
			s."SubmitTimeUtc" AS submit_time_utc
		FROM "Submissions" s
		JOIN "Participations" p ON p."Id" = s."ParticipationId"
		JOIN "Teams" t ON t."Id" = p."TeamId"
		JOIN "GameChallenges" gc ON gc."Id" = s."ChallengeId"
		WHERE p."GameId" = ? AND p."Status" = ? AND s."Status" = ?
	`, gameID, ParticipationAccepted, SubmissionAccepted).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	solves := make([]Solve, 0, len(rows))
	for _, r := range rows {
		solves = append(solves, Solve{
			ParticipationID: r.ParticipationID,
			TeamID:          r.TeamID,
			TeamName:        r.TeamName,
			ChallengeID:     r.ChallengeID,
			Score:           r.OriginalScore,
			SolvedAt:        r.SubmitTimeUtc.UTC(),
		})
	}
	return solves, nil
}

// TeamMembers maps team id to the student numbers of its members in the
// game. Members without a student number are skipped.
func (s *GormStore) TeamMembers(ctx context.Context, gameID int) (map[int][]string, error) {
	var rows []struct {
		TeamID    int
		StdNumber string
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT p."TeamId" AS team_id, COALESCE(u."StdNumber", '') AS std_number
		FROM "Participations" p
		JOIN "UserParticipations" up ON up."ParticipationId" = p."Id"
		JOIN "AspNetUsers" u ON u."Id" = up."UserId"
		WHERE p."GameId" = ? AND p."Status" = ?
	`, gameID, ParticipationAccepted).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	members := make(map[int][]string)
	for _, r := range rows {
		if r.StdNumber == "" {
			continue
		}
		members[r.TeamID] = append(members[r.TeamID], r.StdNumber)
	}
	return members, nil
}
