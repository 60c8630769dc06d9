package ranking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruto/dlstats/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRank(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{TID: "0100000000003000", Downloads: 300},
		{TID: "0100000000001000", Downloads: 300},
		{TID: "0100000000002000", Downloads: 100},
	}
	ranked := Rank(entries)
	require.Len(t, ranked, 3)

	assert.Equal(t, "0100000000001000", ranked[0].TID, "ties break by identifier ascending")
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "0100000000003000", ranked[1].TID)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, "0100000000002000", ranked[2].TID)
	assert.Equal(t, 3, ranked[2].Rank)

	assert.Equal(t, entries[0].TID, "0100000000003000", "input order is untouched")
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Rank(nil))
}

func seedTitles(t *testing.T, s store.Store, now time.Time) {
	t.Helper()
	entries := []store.TitleFacts{
		{
			Title: store.Title{TID: "0100000000001000", IsBase: true, TotalDownloads: 300, LastUpdated: now},
			Facts: []store.Fact{{TID: "0100000000001000", Date: "2024-01-02", Count: 60}},
		},
		{
			Title: store.Title{TID: "0100000000003000", IsBase: true, TotalDownloads: 300, LastUpdated: now},
			Facts: []store.Fact{{TID: "0100000000003000", Date: "2023-12-28", Count: 90}},
		},
		{
			Title: store.Title{TID: "0100000000002000", IsBase: true, TotalDownloads: 100, LastUpdated: now},
		},
	}
	require.NoError(t, s.ApplyBatch(context.Background(), entries))
}

func TestEngineRunAllTimeScope(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	seedTitles(t, s, now)

	eng := New(s, zerolog.Nop())
	eng.now = func() time.Time { return now }
	require.NoError(t, eng.Run(ctx))

	rows, err := s.TopRankings(ctx, store.PeriodAll, store.TypeBase, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "0100000000001000", rows[0].TID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, int64(300), rows[0].Downloads)
	assert.Equal(t, "0100000000003000", rows[1].TID)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, "0100000000002000", rows[2].TID)

	// The all-time window compares against itself, so every delta is zero.
	for _, r := range rows {
		require.NotNil(t, r.PreviousRank)
		assert.Equal(t, r.Rank, *r.PreviousRank)
		assert.Zero(t, r.RankChange)
	}
}

func TestEngineRunBoundedScopeDeltas(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	seedTitles(t, s, now)

	eng := New(s, zerolog.Nop())
	eng.now = func() time.Time { return now }
	require.NoError(t, eng.Run(ctx))

	// 72h window [2023-12-31, now]: title ..1000 has 60, the others 0.
	// Previous window [2023-12-28, 2023-12-31): title ..3000 has 90.
	rows, err := s.TopRankings(ctx, store.Period72h, store.TypeBase, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	leader := rows[0]
	assert.Equal(t, "0100000000001000", leader.TID)
	assert.Equal(t, int64(60), leader.Downloads)
	require.NotNil(t, leader.PreviousRank)
	assert.Equal(t, 2, *leader.PreviousRank)
	assert.Equal(t, 1, leader.RankChange, "climbed from 2 to 1")

	faded := rows[1]
	assert.Equal(t, "0100000000002000", faded.TID)
	assert.Equal(t, int64(0), faded.Downloads)

	dropped := rows[2]
	assert.Equal(t, "0100000000003000", dropped.TID)
	require.NotNil(t, dropped.PreviousRank)
	assert.Equal(t, 1, *dropped.PreviousRank)
	assert.Equal(t, -2, dropped.RankChange, "fell from 1 to 3")
}

func TestEngineHistoryAppendsOncePerDay(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	seedTitles(t, s, now)

	eng := New(s, zerolog.Nop())
	eng.now = func() time.Time { return now }
	require.NoError(t, eng.Run(ctx))
	require.NoError(t, eng.Run(ctx))

	history, err := s.TitleRankings(ctx, "0100000000001000")
	require.NoError(t, err)
	assert.Len(t, history, len(store.AllPeriods()), "one current row per period survives reruns")

	// A later day appends a second history generation without touching the
	// first day's rows.
	eng.now = func() time.Time { return now.AddDate(0, 0, 1) }
	require.NoError(t, eng.Run(ctx))

	inserted, err := s.InsertRankingHistory(ctx, []store.RankingHistory{{
		TID:         "0100000000001000",
		Period:      store.PeriodAll,
		ContentType: store.TypeBase,
		Rank:        9,
		Downloads:   1,
		Date:        "2024-01-03",
	}})
	require.NoError(t, err)
	assert.Zero(t, inserted, "the first day's row is immutable")
}
