package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruto/dlstats/internal/store"
)

func TestEvolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cur  int64
		prev int64
		want float64
	}{
		{"zero previous window", 100, 0, 0},
		{"negative previous window", 100, -5, 0},
		{"growth", 150, 100, 50},
		{"decline", 100, 150, -33.3},
		{"collapse to zero", 0, 100, -100},
		{"one decimal rounding", 1, 3, -66.7},
		{"flat", 100, 100, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Evolution(tt.cur, tt.prev), 0.001)
		})
	}
}

func TestGlobalTotals(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	facts := []store.Fact{
		{TID: "a", Date: "2024-02-28", Count: 10}, // inside 72h
		{TID: "a", Date: "2024-02-25", Count: 20}, // previous 72h window, inside 7d
		{TID: "b", Date: "2024-01-25", Count: 40}, // previous 30d window
		{TID: "b", Date: "2023-06-01", Count: 100}, // all-time only
	}

	gs := GlobalTotals(facts, now)
	assert.Equal(t, int64(10), gs.Last72h)
	assert.Equal(t, int64(30), gs.Last7d)
	assert.Equal(t, int64(30), gs.Last30d)
	assert.Equal(t, int64(170), gs.AllTime)
	assert.InDelta(t, -50.0, gs.Evolution72h, 0.001)
	assert.InDelta(t, 0.0, gs.Evolution7d, 0.001, "empty previous window reports zero")
	assert.InDelta(t, -25.0, gs.Evolution30d, 0.001)
}

func TestDailyBuckets(t *testing.T) {
	t.Parallel()
	dim := map[string]Dim{
		"base1": {Kind: store.TypeBase, Size: 100},
		"upd1":  {Kind: store.TypeUpdate, Size: 10},
		"dlc1":  {Kind: store.TypeDLC},
	}
	facts := []store.Fact{
		{TID: "base1", Date: "2024-01-02", Count: 5},
		{TID: "upd1", Date: "2024-01-02", Count: 3},
		{TID: "dlc1", Date: "2024-01-02", Count: 2},
		{TID: "base1", Date: "2024-01-01", Count: 1},
		{TID: "ghost", Date: "2024-01-01", Count: 999}, // no dimension row
	}

	rows := DailyBuckets(facts, dim)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, int64(1), first.TotalDownloads)
	assert.Equal(t, int64(1), first.UniqueTitles)
	assert.Equal(t, int64(100), first.DataTransferred)

	second := rows[1]
	assert.Equal(t, "2024-01-02", second.Date)
	assert.Equal(t, int64(10), second.TotalDownloads)
	assert.Equal(t, int64(3), second.UniqueTitles)
	assert.Equal(t, int64(5), second.BaseDownloads)
	assert.Equal(t, int64(3), second.UpdateDownloads)
	assert.Equal(t, int64(2), second.DLCDownloads)
	assert.Equal(t, int64(530), second.DataTransferred)
	assert.Equal(t, int64(500), second.BaseData)
	assert.Equal(t, int64(30), second.UpdateData)
	assert.Equal(t, int64(0), second.DLCData, "unknown size counts as zero bytes")
}

func TestWeeklyBuckets(t *testing.T) {
	t.Parallel()
	dim := map[string]Dim{"a": {Kind: store.TypeBase, Size: 2}}
	facts := []store.Fact{
		{TID: "a", Date: "2024-01-01", Count: 5}, // 2024 W01
		{TID: "a", Date: "2024-01-03", Count: 5}, // 2024 W01
		{TID: "a", Date: "2024-01-08", Count: 7}, // 2024 W02
		{TID: "a", Date: "2021-01-01", Count: 1}, // ISO year 2020, W53
		{TID: "a", Date: "not-a-date", Count: 99},
	}

	rows := WeeklyBuckets(facts, dim)
	require.Len(t, rows, 3)

	assert.Equal(t, 2020, rows[0].Year)
	assert.Equal(t, 53, rows[0].Week)
	assert.Equal(t, int64(1), rows[0].TotalDownloads)

	assert.Equal(t, 2024, rows[1].Year)
	assert.Equal(t, 1, rows[1].Week)
	assert.Equal(t, int64(10), rows[1].TotalDownloads)
	assert.Equal(t, int64(20), rows[1].DataTransferred)

	assert.Equal(t, 2, rows[2].Week)
	assert.Equal(t, int64(7), rows[2].TotalDownloads)

	for _, r := range rows {
		assert.GreaterOrEqual(t, r.Week, 1)
		assert.LessOrEqual(t, r.Week, 53)
	}
}

func TestMonthlyBuckets(t *testing.T) {
	t.Parallel()
	dim := map[string]Dim{"a": {Kind: store.TypeBase, Size: 3}}
	facts := []store.Fact{
		{TID: "a", Date: "2024-02-15", Count: 4},
		{TID: "a", Date: "2024-02-01", Count: 6},
		{TID: "a", Date: "2023-12-31", Count: 1},
		{TID: "a", Date: "bogus", Count: 99},
	}

	rows := MonthlyBuckets(facts, dim)
	require.Len(t, rows, 2)

	assert.Equal(t, 2023, rows[0].Year)
	assert.Equal(t, 12, rows[0].Month)
	assert.Equal(t, int64(1), rows[0].TotalDownloads)

	assert.Equal(t, 2024, rows[1].Year)
	assert.Equal(t, 2, rows[1].Month)
	assert.Equal(t, int64(10), rows[1].TotalDownloads)
	assert.Equal(t, int64(30), rows[1].DataTransferred)
}

func TestPeriodStats(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dim := map[string]Dim{
		"base1": {Kind: store.TypeBase, Size: 100},
		"upd1":  {Kind: store.TypeUpdate, Size: 10},
	}
	facts := []store.Fact{
		{TID: "base1", Date: "2024-02-29", Count: 30},
		{TID: "base1", Date: "2024-02-25", Count: 10}, // previous 72h window
		{TID: "upd1", Date: "2024-02-29", Count: 5},
		{TID: "upd1", Date: "2023-01-01", Count: 50}, // all-time only
	}

	rows := PeriodStats(facts, dim, now)
	require.Len(t, rows, 16, "4 periods x 4 content types")

	find := func(p store.Period, ct store.ContentType) store.PeriodStat {
		for _, r := range rows {
			if r.Period == p && r.ContentType == ct {
				return r
			}
		}
		t.Fatalf("missing row for %s/%s", p, ct)
		return store.PeriodStat{}
	}

	base72 := find(store.Period72h, store.TypeBase)
	assert.Equal(t, int64(30), base72.TotalDownloads)
	assert.Equal(t, int64(3000), base72.DataTransferred)
	assert.Equal(t, int64(1), base72.UniqueItems)
	assert.InDelta(t, 200.0, base72.GrowthRate, 0.001)

	all72 := find(store.Period72h, store.TypeAll)
	assert.Equal(t, int64(35), all72.TotalDownloads)
	assert.Equal(t, int64(2), all72.UniqueItems)

	allTime := find(store.PeriodAll, store.TypeAll)
	assert.Equal(t, int64(95), allTime.TotalDownloads)
	assert.InDelta(t, 0.0, allTime.GrowthRate, 0.001, "all-time has no previous window")

	dlc := find(store.Period7d, store.TypeDLC)
	assert.Equal(t, int64(0), dlc.TotalDownloads)
	assert.Equal(t, int64(0), dlc.UniqueItems)
}

func TestTopBase(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	titles := []store.Title{
		{TID: "0100000000003000", IsBase: true, TotalDownloads: 300},
		{TID: "0100000000001000", IsBase: true, TotalDownloads: 300},
		{TID: "0100000000002000", IsBase: true, TotalDownloads: 100},
		{TID: "0100000000001800", IsUpdate: true, TotalDownloads: 999},
	}

	t.Run("all time uses lifetime totals with tid tie-break", func(t *testing.T) {
		t.Parallel()
		rows := TopBase(titles, nil, store.PeriodAll, now, 12)
		require.Len(t, rows, 3)
		assert.Equal(t, "0100000000001000", rows[0].TID)
		assert.Equal(t, 1, rows[0].Rank)
		assert.Equal(t, "0100000000003000", rows[1].TID)
		assert.Equal(t, 2, rows[1].Rank)
		assert.Equal(t, "0100000000002000", rows[2].TID)
	})

	t.Run("bounded window counts window facts only", func(t *testing.T) {
		t.Parallel()
		facts := []store.Fact{
			{TID: "0100000000002000", Date: "2024-02-29", Count: 50},
			{TID: "0100000000001000", Date: "2023-01-01", Count: 500}, // outside window
			{TID: "0100000000001800", Date: "2024-02-29", Count: 70}, // not a base title
		}
		rows := TopBase(titles, facts, store.Period72h, now, 12)
		require.Len(t, rows, 3)
		assert.Equal(t, "0100000000002000", rows[0].TID)
		assert.Equal(t, int64(50), rows[0].Downloads)
		assert.Equal(t, int64(0), rows[1].Downloads, "quiet base titles keep a zero-download slot")
	})

	t.Run("limit truncates before ranks are assigned", func(t *testing.T) {
		t.Parallel()
		rows := TopBase(titles, nil, store.PeriodAll, now, 2)
		require.Len(t, rows, 2)
		assert.Equal(t, 1, rows[0].Rank)
		assert.Equal(t, 2, rows[1].Rank)
	})
}
