package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/maruto/dlstats/pkg/title"
)

// Period is a fixed look-back window over the download facts.
type Period string

const (
	Period72h Period = "72h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	PeriodAll Period = "all"
)

// AllPeriods returns every valid period.
func AllPeriods() []Period {
	return []Period{Period72h, Period7d, Period30d, PeriodAll}
}

// Days returns the window length in days, 0 for the all-time period.
func (p Period) Days() int {
	switch p {
	case Period72h:
		return 3
	case Period7d:
		return 7
	case Period30d:
		return 30
	}
	return 0
}

// PrevDays returns the far boundary of the immediately preceding window of
// equal length, 0 for the all-time period.
func (p Period) PrevDays() int {
	return p.Days() * 2
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case Period72h, Period7d, Period30d, PeriodAll:
		return true
	}
	return false
}

// ContentType partitions titles for rankings and period stats. TypeAll is
// synthetic and only appears in period stats aggregate rows.
type ContentType string

const (
	TypeBase   ContentType = "base"
	TypeUpdate ContentType = "update"
	TypeDLC    ContentType = "dlc"
	TypeAll    ContentType = "all"
)

// RankedTypes returns the content types that get their own rankings.
func RankedTypes() []ContentType {
	return []ContentType{TypeBase, TypeUpdate, TypeDLC}
}

// Valid reports whether ct is a known content type.
func (ct ContentType) Valid() bool {
	switch ct {
	case TypeBase, TypeUpdate, TypeDLC, TypeAll:
		return true
	}
	return false
}

// TypeOf maps a classifier kind to its content type.
func TypeOf(k title.Kind) ContentType {
	return ContentType(k)
}

// Title is one row of the title dimension.
type Title struct {
	TID            string    `db:"tid" json:"tid"`
	Name           *string   `db:"name" json:"name"`
	Version        *string   `db:"version" json:"version"`
	Size           *int64    `db:"size" json:"size"`
	ReleaseDate    *string   `db:"release_date" json:"release_date"`
	IsBase         bool      `db:"is_base" json:"is_base"`
	IsUpdate       bool      `db:"is_update" json:"is_update"`
	IsDLC          bool      `db:"is_dlc" json:"is_dlc"`
	BaseTID        *string   `db:"base_tid" json:"base_tid"`
	TotalDownloads int64     `db:"total_downloads" json:"total_downloads"`
	LastUpdated    time.Time `db:"last_updated" json:"last_updated"`
}

// Kind returns the title's content type from its role flags.
func (t Title) Kind() ContentType {
	switch {
	case t.IsBase:
		return TypeBase
	case t.IsUpdate:
		return TypeUpdate
	}
	return TypeDLC
}

// Fact is one (title, date, count) download observation. Dates are
// YYYY-MM-DD strings, which order lexicographically by calendar day.
type Fact struct {
	TID   string `db:"tid" json:"tid"`
	Date  string `db:"date" json:"date"`
	Count int64  `db:"count" json:"count"`
}

// TitleFacts bundles a title with its per-date facts for batch ingestion.
type TitleFacts struct {
	Title Title
	Facts []Fact
}

// Store is the persistence interface.
type Store interface {
	// Ingestion.
	ApplyBatch(ctx context.Context, entries []TitleFacts) error

	// Dimension and fact reads for the engines.
	Titles(ctx context.Context) ([]Title, error)
	Facts(ctx context.Context) ([]Fact, error)

	// Read path.
	GetTitle(ctx context.Context, tid string) (*Title, error)
	TitleFacts(ctx context.Context, tid string) ([]Fact, error)
	SearchTitles(ctx context.Context, query string, limit int) ([]Title, error)

	// Rollups.
	UpdateGlobalStats(ctx context.Context, gs *GlobalStats) error
	GlobalStats(ctx context.Context) (*GlobalStats, error)
	ReplaceDailyStats(ctx context.Context, rows []DailyStat) error
	DailyStats(ctx context.Context, since string) ([]DailyStat, error)
	ReplaceWeeklyStats(ctx context.Context, rows []WeeklyStat) error
	WeeklyStats(ctx context.Context) ([]WeeklyStat, error)
	ReplaceMonthlyStats(ctx context.Context, rows []MonthlyStat) error
	MonthlyStats(ctx context.Context) ([]MonthlyStat, error)
	ReplacePeriodStats(ctx context.Context, rows []PeriodStat) error
	PeriodStats(ctx context.Context, period Period) ([]PeriodStat, error)
	PutAnalyticsCache(ctx context.Context, period Period, data []byte) error
	AnalyticsCache(ctx context.Context, period Period) ([]byte, bool, error)

	// Rankings.
	ReplaceRankings(ctx context.Context, period Period, ct ContentType, rows []Ranking) error
	InsertRankingHistory(ctx context.Context, rows []RankingHistory) (int64, error)
	TopRankings(ctx context.Context, period Period, ct ContentType, limit int) ([]Ranking, error)
	TitleRankings(ctx context.Context, tid string) ([]Ranking, error)
	ReplaceHomeRankings(ctx context.Context, period Period, rows []HomeRanking) error
	HomeRankings(ctx context.Context, period Period) ([]HomeRanking, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations. An open or migration
// failure is fatal to the caller: nothing else works without the store.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
