package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Ranking is one title's current position within a (period, content type)
// ranking. RankChange is previous rank minus current rank: positive means
// the title moved up.
type Ranking struct {
	TID               string      `db:"tid" json:"tid"`
	Period            Period      `db:"period" json:"period"`
	ContentType       ContentType `db:"content_type" json:"content_type"`
	Rank              int         `db:"rank" json:"rank"`
	PreviousRank      *int        `db:"previous_rank" json:"previous_rank"`
	RankChange        int         `db:"rank_change" json:"rank_change"`
	Downloads         int64       `db:"downloads" json:"downloads"`
	PreviousDownloads int64       `db:"previous_downloads" json:"previous_downloads"`
	LastUpdated       time.Time   `db:"last_updated" json:"last_updated"`
	Name              *string     `db:"name" json:"name,omitempty"`
}

// RankingHistory is one append-only audit row of a title's rank on a date.
type RankingHistory struct {
	TID         string      `db:"tid" json:"tid"`
	Period      Period      `db:"period" json:"period"`
	ContentType ContentType `db:"content_type" json:"content_type"`
	Rank        int         `db:"rank" json:"rank"`
	Downloads   int64       `db:"downloads" json:"downloads"`
	Date        string      `db:"date" json:"date"`
}

// HomeRanking is one slot of the home-page top list for a period.
type HomeRanking struct {
	TID         string    `db:"tid" json:"tid"`
	Period      Period    `db:"period" json:"period"`
	Rank        int       `db:"rank" json:"rank"`
	Downloads   int64     `db:"downloads" json:"downloads"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
	Name        *string   `db:"name" json:"name,omitempty"`
}

// ReplaceRankings swaps out the current rankings for one (period, content
// type) scope in a single transaction.
func (s *SQLiteStore) ReplaceRankings(ctx context.Context, period Period, ct ContentType, rows []Ranking) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM current_rankings WHERE period = ? AND content_type = ?", period, ct)
		if err != nil {
			return fmt.Errorf("clear rankings %s/%s: %w", period, ct, err)
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO current_rankings (
					tid, period, content_type, rank, previous_rank, rank_change,
					downloads, previous_downloads, last_updated
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, r.TID, period, ct, r.Rank, r.PreviousRank, r.RankChange,
				r.Downloads, r.PreviousDownloads, r.LastUpdated)
			if err != nil {
				return fmt.Errorf("insert ranking %s: %w", r.TID, err)
			}
		}
		return nil
	})
}

// InsertRankingHistory appends history rows, ignoring any (tid, period,
// content type, date) that already exists. Returns how many rows were
// actually inserted.
func (s *SQLiteStore) InsertRankingHistory(ctx context.Context, rows []RankingHistory) (int64, error) {
	var inserted int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range rows {
			res, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO rankings_history (
					tid, period, content_type, rank, downloads, date
				) VALUES (?, ?, ?, ?, ?, ?)
			`, r.TID, r.Period, r.ContentType, r.Rank, r.Downloads, r.Date)
			if err != nil {
				return fmt.Errorf("insert ranking history %s: %w", r.TID, err)
			}
			n, _ := res.RowsAffected()
			inserted += n
		}
		return nil
	})
	return inserted, err
}

func (s *SQLiteStore) TopRankings(ctx context.Context, period Period, ct ContentType, limit int) ([]Ranking, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Ranking
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.*, t.name
		FROM current_rankings r
		LEFT JOIN titles t ON r.tid = t.tid
		WHERE r.period = ? AND r.content_type = ?
		ORDER BY r.rank
		LIMIT ?
	`, period, ct, limit)
	if err != nil {
		return nil, fmt.Errorf("top rankings %s/%s: %w", period, ct, err)
	}
	return rows, nil
}

func (s *SQLiteStore) TitleRankings(ctx context.Context, tid string) ([]Ranking, error) {
	var rows []Ranking
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.*, t.name
		FROM current_rankings r
		LEFT JOIN titles t ON r.tid = t.tid
		WHERE r.tid = ?
		ORDER BY r.period, r.content_type
	`, tid)
	if err != nil {
		return nil, fmt.Errorf("title rankings %s: %w", tid, err)
	}
	return rows, nil
}

// ReplaceHomeRankings swaps out the home-page top list for one period.
func (s *SQLiteStore) ReplaceHomeRankings(ctx context.Context, period Period, rows []HomeRanking) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM home_rankings WHERE period = ?", period)
		if err != nil {
			return fmt.Errorf("clear home rankings %s: %w", period, err)
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO home_rankings (tid, period, rank, downloads, last_updated)
				VALUES (?, ?, ?, ?, ?)
			`, r.TID, period, r.Rank, r.Downloads, r.LastUpdated)
			if err != nil {
				return fmt.Errorf("insert home ranking %s: %w", r.TID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) HomeRankings(ctx context.Context, period Period) ([]HomeRanking, error) {
	var rows []HomeRanking
	err := s.db.SelectContext(ctx, &rows, `
		SELECT h.*, t.name
		FROM home_rankings h
		LEFT JOIN titles t ON h.tid = t.tid
		WHERE h.period = ?
		ORDER BY h.rank
	`, period)
	if err != nil {
		return nil, fmt.Errorf("home rankings %s: %w", period, err)
	}
	return rows, nil
}
