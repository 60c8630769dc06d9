package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GlobalStats is the singleton row of site-wide totals.
type GlobalStats struct {
	ID           int64     `db:"id" json:"-"`
	Last72h      int64     `db:"last_72h" json:"last_72h"`
	Last7d       int64     `db:"last_7d" json:"last_7d"`
	Last30d      int64     `db:"last_30d" json:"last_30d"`
	AllTime      int64     `db:"all_time" json:"all_time"`
	Evolution72h float64   `db:"evolution_72h" json:"evolution_72h"`
	Evolution7d  float64   `db:"evolution_7d" json:"evolution_7d"`
	Evolution30d float64   `db:"evolution_30d" json:"evolution_30d"`
	LastUpdated  time.Time `db:"last_updated" json:"last_updated"`
}

// DailyStat is one calendar day's aggregate with content-type breakdowns.
type DailyStat struct {
	Date            string `db:"date" json:"date"`
	TotalDownloads  int64  `db:"total_downloads" json:"total_downloads"`
	UniqueTitles    int64  `db:"unique_titles" json:"unique_titles"`
	DataTransferred int64  `db:"data_transferred" json:"data_transferred"`
	BaseDownloads   int64  `db:"base_downloads" json:"base_downloads"`
	UpdateDownloads int64  `db:"update_downloads" json:"update_downloads"`
	DLCDownloads    int64  `db:"dlc_downloads" json:"dlc_downloads"`
	BaseData        int64  `db:"base_data" json:"base_data"`
	UpdateData      int64  `db:"update_data" json:"update_data"`
	DLCData         int64  `db:"dlc_data" json:"dlc_data"`
}

// WeeklyStat is one ISO-week bucket.
type WeeklyStat struct {
	Year            int   `db:"year" json:"year"`
	Week            int   `db:"week" json:"week"`
	TotalDownloads  int64 `db:"total_downloads" json:"total_downloads"`
	DataTransferred int64 `db:"data_transferred" json:"data_transferred"`
}

// MonthlyStat is one calendar-month bucket.
type MonthlyStat struct {
	Year            int   `db:"year" json:"year"`
	Month           int   `db:"month" json:"month"`
	TotalDownloads  int64 `db:"total_downloads" json:"total_downloads"`
	DataTransferred int64 `db:"data_transferred" json:"data_transferred"`
}

// PeriodStat is the summary row for one (period, content type) pair.
type PeriodStat struct {
	Period          Period      `db:"period" json:"period"`
	ContentType     ContentType `db:"content_type" json:"content_type"`
	TotalDownloads  int64       `db:"total_downloads" json:"total_downloads"`
	DataTransferred int64       `db:"data_transferred" json:"data_transferred"`
	UniqueItems     int64       `db:"unique_items" json:"unique_items"`
	GrowthRate      float64     `db:"growth_rate" json:"growth_rate"`
	LastUpdated     time.Time   `db:"last_updated" json:"last_updated"`
}

// UpdateGlobalStats overwrites the singleton totals row.
func (s *SQLiteStore) UpdateGlobalStats(ctx context.Context, gs *GlobalStats) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE global_stats SET
			last_72h = ?, last_7d = ?, last_30d = ?, all_time = ?,
			evolution_72h = ?, evolution_7d = ?, evolution_30d = ?,
			last_updated = ?
		WHERE id = 1
	`, gs.Last72h, gs.Last7d, gs.Last30d, gs.AllTime,
		gs.Evolution72h, gs.Evolution7d, gs.Evolution30d, gs.LastUpdated)
	if err != nil {
		return fmt.Errorf("update global stats: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	var gs GlobalStats
	err := s.db.GetContext(ctx, &gs, "SELECT * FROM global_stats WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return &GlobalStats{ID: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get global stats: %w", err)
	}
	return &gs, nil
}

func (s *SQLiteStore) ReplaceDailyStats(ctx context.Context, rows []DailyStat) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM analytics_daily"); err != nil {
			return fmt.Errorf("clear daily stats: %w", err)
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO analytics_daily (
					date, total_downloads, unique_titles, data_transferred,
					base_downloads, update_downloads, dlc_downloads,
					base_data, update_data, dlc_data
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, r.Date, r.TotalDownloads, r.UniqueTitles, r.DataTransferred,
				r.BaseDownloads, r.UpdateDownloads, r.DLCDownloads,
				r.BaseData, r.UpdateData, r.DLCData)
			if err != nil {
				return fmt.Errorf("insert daily stat %s: %w", r.Date, err)
			}
		}
		return nil
	})
}

// DailyStats returns daily buckets, optionally restricted to dates >= since.
func (s *SQLiteStore) DailyStats(ctx context.Context, since string) ([]DailyStat, error) {
	query := "SELECT * FROM analytics_daily"
	var args []any
	if since != "" {
		query += " WHERE date >= ?"
		args = append(args, since)
	}
	query += " ORDER BY date"

	var rows []DailyStat
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return rows, nil
}

func (s *SQLiteStore) ReplaceWeeklyStats(ctx context.Context, rows []WeeklyStat) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM analytics_weekly"); err != nil {
			return fmt.Errorf("clear weekly stats: %w", err)
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO analytics_weekly (year, week, total_downloads, data_transferred)
				VALUES (?, ?, ?, ?)
			`, r.Year, r.Week, r.TotalDownloads, r.DataTransferred)
			if err != nil {
				return fmt.Errorf("insert weekly stat %d/%d: %w", r.Year, r.Week, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) WeeklyStats(ctx context.Context) ([]WeeklyStat, error) {
	var rows []WeeklyStat
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM analytics_weekly ORDER BY year, week")
	if err != nil {
		return nil, fmt.Errorf("weekly stats: %w", err)
	}
	return rows, nil
}

func (s *SQLiteStore) ReplaceMonthlyStats(ctx context.Context, rows []MonthlyStat) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM analytics_monthly"); err != nil {
			return fmt.Errorf("clear monthly stats: %w", err)
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO analytics_monthly (year, month, total_downloads, data_transferred)
				VALUES (?, ?, ?, ?)
			`, r.Year, r.Month, r.TotalDownloads, r.DataTransferred)
			if err != nil {
				return fmt.Errorf("insert monthly stat %d/%d: %w", r.Year, r.Month, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) MonthlyStats(ctx context.Context) ([]MonthlyStat, error) {
	var rows []MonthlyStat
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM analytics_monthly ORDER BY year, month")
	if err != nil {
		return nil, fmt.Errorf("monthly stats: %w", err)
	}
	return rows, nil
}

func (s *SQLiteStore) ReplacePeriodStats(ctx context.Context, rows []PeriodStat) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM analytics_period_stats"); err != nil {
			return fmt.Errorf("clear period stats: %w", err)
		}
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO analytics_period_stats (
					period, content_type, total_downloads, data_transferred,
					unique_items, growth_rate, last_updated
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.Period, r.ContentType, r.TotalDownloads, r.DataTransferred,
				r.UniqueItems, r.GrowthRate, r.LastUpdated)
			if err != nil {
				return fmt.Errorf("insert period stat %s/%s: %w", r.Period, r.ContentType, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) PeriodStats(ctx context.Context, period Period) ([]PeriodStat, error) {
	var rows []PeriodStat
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM analytics_period_stats WHERE period = ? ORDER BY content_type", period)
	if err != nil {
		return nil, fmt.Errorf("period stats %s: %w", period, err)
	}
	return rows, nil
}

// PutAnalyticsCache stores the pre-serialized analytics payload for a period.
func (s *SQLiteStore) PutAnalyticsCache(ctx context.Context, period Period, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analytics_cache (period, data, created_at)
		VALUES (?, ?, ?)
	`, period, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put analytics cache %s: %w", period, err)
	}
	return nil
}

// AnalyticsCache returns the cached payload for a period, if present.
func (s *SQLiteStore) AnalyticsCache(ctx context.Context, period Period) ([]byte, bool, error) {
	var data string
	err := s.db.GetContext(ctx, &data,
		"SELECT data FROM analytics_cache WHERE period = ?", period)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get analytics cache %s: %w", period, err)
	}
	return []byte(data), true, nil
}
