package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ApplyBatch upserts a batch of titles and their facts as one transaction.
// Titles are replaced wholesale; facts are overwritten per (tid, date), so
// re-ingesting the same files is a pure overwrite.
func (s *SQLiteStore) ApplyBatch(ctx context.Context, entries []TitleFacts) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for i := range entries {
			t := &entries[i].Title
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO titles (
					tid, name, version, size, release_date,
					is_base, is_update, is_dlc, base_tid,
					total_downloads, last_updated
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, t.TID, t.Name, t.Version, t.Size, t.ReleaseDate,
				t.IsBase, t.IsUpdate, t.IsDLC, t.BaseTID,
				t.TotalDownloads, t.LastUpdated)
			if err != nil {
				return fmt.Errorf("upsert title %s: %w", t.TID, err)
			}

			for _, f := range entries[i].Facts {
				_, err := tx.ExecContext(ctx, `
					INSERT OR REPLACE INTO downloads (tid, date, count)
					VALUES (?, ?, ?)
				`, f.TID, f.Date, f.Count)
				if err != nil {
					return fmt.Errorf("upsert fact %s/%s: %w", f.TID, f.Date, err)
				}
			}
		}
		return nil
	})
}

// Titles returns the full title dimension.
func (s *SQLiteStore) Titles(ctx context.Context) ([]Title, error) {
	var titles []Title
	if err := s.db.SelectContext(ctx, &titles, "SELECT * FROM titles ORDER BY tid"); err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	return titles, nil
}

// Facts returns every download fact.
func (s *SQLiteStore) Facts(ctx context.Context) ([]Fact, error) {
	var facts []Fact
	if err := s.db.SelectContext(ctx, &facts, "SELECT * FROM downloads ORDER BY tid, date"); err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return facts, nil
}

func (s *SQLiteStore) GetTitle(ctx context.Context, tid string) (*Title, error) {
	var t Title
	err := s.db.GetContext(ctx, &t, "SELECT * FROM titles WHERE tid = ?", tid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get title %s: %w", tid, err)
	}
	return &t, nil
}

func (s *SQLiteStore) TitleFacts(ctx context.Context, tid string) ([]Fact, error) {
	var facts []Fact
	err := s.db.SelectContext(ctx, &facts,
		"SELECT * FROM downloads WHERE tid = ? ORDER BY date", tid)
	if err != nil {
		return nil, fmt.Errorf("title facts %s: %w", tid, err)
	}
	return facts, nil
}

// SearchTitles matches the query against identifiers and display names.
func (s *SQLiteStore) SearchTitles(ctx context.Context, query string, limit int) ([]Title, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"

	var titles []Title
	err := s.db.SelectContext(ctx, &titles, `
		SELECT * FROM titles
		WHERE tid LIKE ? OR name LIKE ?
		ORDER BY total_downloads DESC, tid ASC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	return titles, nil
}
