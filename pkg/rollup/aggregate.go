package rollup

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/maruto/dlstats/internal/store"
)

// Dim is the slice of the title dimension the aggregations need: the
// content type and the declared size (0 when unknown).
type Dim struct {
	Kind store.ContentType
	Size int64
}

// DimOf extracts the aggregation dimension from the title rows.
func DimOf(titles []store.Title) map[string]Dim {
	dim := make(map[string]Dim, len(titles))
	for _, t := range titles {
		var size int64
		if t.Size != nil {
			size = *t.Size
		}
		dim[t.TID] = Dim{Kind: t.Kind(), Size: size}
	}
	return dim
}

// dateFormat is the calendar-day key used throughout the fact table.
// YYYY-MM-DD strings compare lexicographically in date order.
const dateFormat = "2006-01-02"

// windowStart returns the inclusive lower bound of a window ending now.
func windowStart(now time.Time, days int) string {
	return now.UTC().AddDate(0, 0, -days).Format(dateFormat)
}

// Evolution is the growth of cur over prev as a percentage rounded to one
// decimal. By convention it is 0 when prev is 0: a window appearing from
// nothing is not infinite growth.
func Evolution(cur, prev int64) float64 {
	if prev <= 0 {
		return 0
	}
	return math.Round(float64(cur-prev)/float64(prev)*1000) / 10
}

// GlobalTotals computes the singleton global stats from the fact set: the
// 72h/7d/30d/all-time totals and each bounded window's evolution versus the
// immediately preceding window of equal length.
func GlobalTotals(facts []store.Fact, now time.Time) store.GlobalStats {
	cut3 := windowStart(now, 3)
	cut6 := windowStart(now, 6)
	cut7 := windowStart(now, 7)
	cut14 := windowStart(now, 14)
	cut30 := windowStart(now, 30)
	cut60 := windowStart(now, 60)

	var cur72, cur7d, cur30d, all int64
	var prev72, prev7d, prev30d int64
	for _, f := range facts {
		all += f.Count
		if f.Date >= cut3 {
			cur72 += f.Count
		} else if f.Date >= cut6 {
			prev72 += f.Count
		}
		if f.Date >= cut7 {
			cur7d += f.Count
		} else if f.Date >= cut14 {
			prev7d += f.Count
		}
		if f.Date >= cut30 {
			cur30d += f.Count
		} else if f.Date >= cut60 {
			prev30d += f.Count
		}
	}

	return store.GlobalStats{
		ID:           1,
		Last72h:      cur72,
		Last7d:       cur7d,
		Last30d:      cur30d,
		AllTime:      all,
		Evolution72h: Evolution(cur72, prev72),
		Evolution7d:  Evolution(cur7d, prev7d),
		Evolution30d: Evolution(cur30d, prev30d),
		LastUpdated:  now.UTC(),
	}
}

// DailyBuckets groups facts by calendar date with per-content-type download
// and byte-volume breakdowns. Facts without a dimension row are excluded.
func DailyBuckets(facts []store.Fact, dim map[string]Dim) []store.DailyStat {
	byDate := make(map[string]*store.DailyStat)
	uniq := make(map[string]map[string]struct{})

	for _, f := range facts {
		d, ok := dim[f.TID]
		if !ok {
			continue
		}
		row := byDate[f.Date]
		if row == nil {
			row = &store.DailyStat{Date: f.Date}
			byDate[f.Date] = row
			uniq[f.Date] = make(map[string]struct{})
		}
		uniq[f.Date][f.TID] = struct{}{}

		bytes := f.Count * d.Size
		row.TotalDownloads += f.Count
		row.DataTransferred += bytes
		switch d.Kind {
		case store.TypeBase:
			row.BaseDownloads += f.Count
			row.BaseData += bytes
		case store.TypeUpdate:
			row.UpdateDownloads += f.Count
			row.UpdateData += bytes
		case store.TypeDLC:
			row.DLCDownloads += f.Count
			row.DLCData += bytes
		}
	}

	rows := make([]store.DailyStat, 0, len(byDate))
	for date, row := range byDate {
		row.UniqueTitles = int64(len(uniq[date]))
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

// WeeklyBuckets groups facts by ISO week. Week numbers are clamped to
// [1, 53] to match the table's CHECK constraint at the edges of a year.
func WeeklyBuckets(facts []store.Fact, dim map[string]Dim) []store.WeeklyStat {
	type key struct{ year, week int }
	byWeek := make(map[key]*store.WeeklyStat)

	for _, f := range facts {
		d, ok := dim[f.TID]
		if !ok {
			continue
		}
		day, err := time.Parse(dateFormat, f.Date)
		if err != nil {
			continue
		}
		year, week := day.ISOWeek()
		week = max(1, min(week, 53))

		k := key{year, week}
		row := byWeek[k]
		if row == nil {
			row = &store.WeeklyStat{Year: year, Week: week}
			byWeek[k] = row
		}
		row.TotalDownloads += f.Count
		row.DataTransferred += f.Count * d.Size
	}

	rows := make([]store.WeeklyStat, 0, len(byWeek))
	for _, row := range byWeek {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].Week < rows[j].Week
	})
	return rows
}

// MonthlyBuckets groups facts by calendar month.
func MonthlyBuckets(facts []store.Fact, dim map[string]Dim) []store.MonthlyStat {
	type key struct{ year, month int }
	byMonth := make(map[key]*store.MonthlyStat)

	for _, f := range facts {
		d, ok := dim[f.TID]
		if !ok {
			continue
		}
		year, month, ok := splitMonth(f.Date)
		if !ok {
			continue
		}

		k := key{year, month}
		row := byMonth[k]
		if row == nil {
			row = &store.MonthlyStat{Year: year, Month: month}
			byMonth[k] = row
		}
		row.TotalDownloads += f.Count
		row.DataTransferred += f.Count * d.Size
	}

	rows := make([]store.MonthlyStat, 0, len(byMonth))
	for _, row := range byMonth {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].Month < rows[j].Month
	})
	return rows
}

func splitMonth(date string) (year, month int, ok bool) {
	if len(date) < 7 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, 0, false
	}
	month, err = strconv.Atoi(date[5:7])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

// PeriodStats computes the summary row for every (period, content type)
// pair, including the synthetic "all" content type. Growth compares the
// window against the immediately preceding window of equal length and is 0
// when the previous window is empty; the all-time period has no previous
// window and reports 0.
func PeriodStats(facts []store.Fact, dim map[string]Dim, now time.Time) []store.PeriodStat {
	types := append(store.RankedTypes(), store.TypeAll)
	rows := make([]store.PeriodStat, 0, len(store.AllPeriods())*len(types))

	for _, period := range store.AllPeriods() {
		var curStart, prevStart string
		if period != store.PeriodAll {
			curStart = windowStart(now, period.Days())
			prevStart = windowStart(now, period.PrevDays())
		}

		for _, ct := range types {
			var cur, prev, bytes int64
			uniq := make(map[string]struct{})

			for _, f := range facts {
				d, ok := dim[f.TID]
				if !ok {
					continue
				}
				if ct != store.TypeAll && d.Kind != ct {
					continue
				}
				switch {
				case period == store.PeriodAll || f.Date >= curStart:
					cur += f.Count
					bytes += f.Count * d.Size
					uniq[f.TID] = struct{}{}
				case f.Date >= prevStart:
					prev += f.Count
				}
			}

			growth := 0.0
			if period != store.PeriodAll {
				growth = Evolution(cur, prev)
			}
			rows = append(rows, store.PeriodStat{
				Period:          period,
				ContentType:     ct,
				TotalDownloads:  cur,
				DataTransferred: bytes,
				UniqueItems:     int64(len(uniq)),
				GrowthRate:      growth,
				LastUpdated:     now.UTC(),
			})
		}
	}
	return rows
}

// TopBase ranks base titles by window downloads, identifier ascending on
// ties, and returns the top limit rows. Base titles with no facts in the
// window still qualify with zero downloads.
func TopBase(titles []store.Title, facts []store.Fact, period store.Period, now time.Time, limit int) []store.HomeRanking {
	downloads := make(map[string]int64)
	for _, t := range titles {
		if !t.IsBase {
			continue
		}
		if period == store.PeriodAll {
			downloads[t.TID] = t.TotalDownloads
		} else {
			downloads[t.TID] = 0
		}
	}

	if period != store.PeriodAll {
		cut := windowStart(now, period.Days())
		for _, f := range facts {
			if _, ok := downloads[f.TID]; !ok {
				continue
			}
			if f.Date >= cut {
				downloads[f.TID] += f.Count
			}
		}
	}

	rows := make([]store.HomeRanking, 0, len(downloads))
	for tid, count := range downloads {
		rows = append(rows, store.HomeRanking{
			TID:         tid,
			Period:      period,
			Downloads:   count,
			LastUpdated: now.UTC(),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Downloads != rows[j].Downloads {
			return rows[i].Downloads > rows[j].Downloads
		}
		return rows[i].TID < rows[j].TID
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
