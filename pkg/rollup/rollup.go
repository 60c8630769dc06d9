// Package rollup recomputes the derived analytics from the fact table:
// global totals, daily/weekly/monthly buckets, per-period summary stats,
// and the home-page top list. Every recomputation is a full replace.
package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maruto/dlstats/internal/store"
)

// DefaultHomeLimit is how many base titles the home-page list holds.
const DefaultHomeLimit = 12

// Engine recomputes all derived analytics state.
type Engine struct {
	store     store.Store
	homeLimit int
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a rollup engine.
func New(st store.Store, homeLimit int, log zerolog.Logger) *Engine {
	if homeLimit <= 0 {
		homeLimit = DefaultHomeLimit
	}
	return &Engine{
		store:     st,
		homeLimit: homeLimit,
		now:       time.Now,
		log:       log,
	}
}

// periodAnalytics is the pre-serialized payload cached per period for the
// read path.
type periodAnalytics struct {
	DailyStats   []store.DailyStat   `json:"daily_stats"`
	MonthlyStats []store.MonthlyStat `json:"monthly_stats"`
	TypeStats    []store.PeriodStat  `json:"type_stats"`
}

// Run recomputes every rollup from the current fact table. Each replace is
// its own transaction; readers may briefly observe mixed state, which the
// read path tolerates.
func (e *Engine) Run(ctx context.Context) error {
	started := e.now()
	titles, err := e.store.Titles(ctx)
	if err != nil {
		return fmt.Errorf("load titles: %w", err)
	}
	facts, err := e.store.Facts(ctx)
	if err != nil {
		return fmt.Errorf("load facts: %w", err)
	}
	dim := DimOf(titles)
	now := e.now()

	gs := GlobalTotals(facts, now)
	if err := e.store.UpdateGlobalStats(ctx, &gs); err != nil {
		return err
	}
	e.log.Info().
		Int64("all_time", gs.AllTime).
		Int64("last_30d", gs.Last30d).
		Msg("global stats updated")

	daily := DailyBuckets(facts, dim)
	if err := e.store.ReplaceDailyStats(ctx, daily); err != nil {
		return err
	}
	weekly := WeeklyBuckets(facts, dim)
	if err := e.store.ReplaceWeeklyStats(ctx, weekly); err != nil {
		return err
	}
	monthly := MonthlyBuckets(facts, dim)
	if err := e.store.ReplaceMonthlyStats(ctx, monthly); err != nil {
		return err
	}
	e.log.Info().
		Int("daily", len(daily)).
		Int("weekly", len(weekly)).
		Int("monthly", len(monthly)).
		Msg("bucket analytics replaced")

	periodStats := PeriodStats(facts, dim, now)
	if err := e.store.ReplacePeriodStats(ctx, periodStats); err != nil {
		return err
	}

	for _, period := range store.AllPeriods() {
		top := TopBase(titles, facts, period, now, e.homeLimit)
		if err := e.store.ReplaceHomeRankings(ctx, period, top); err != nil {
			return err
		}
	}

	if err := e.cacheAnalytics(ctx, daily, monthly, periodStats, facts, dim, now); err != nil {
		return err
	}

	e.log.Info().Dur("elapsed", e.now().Sub(started)).Msg("rollups complete")
	return nil
}

// cacheAnalytics serializes a per-period analytics payload so the read path
// can answer without re-aggregating.
func (e *Engine) cacheAnalytics(ctx context.Context, daily []store.DailyStat, monthly []store.MonthlyStat, periodStats []store.PeriodStat, facts []store.Fact, dim map[string]Dim, now time.Time) error {
	for _, period := range store.AllPeriods() {
		payload := periodAnalytics{
			DailyStats:   daily,
			MonthlyStats: monthly,
		}
		if period != store.PeriodAll {
			cut := windowStart(now, period.Days())
			payload.DailyStats = filterDaily(daily, cut)
			payload.MonthlyStats = MonthlyBuckets(filterFacts(facts, cut), dim)
		}
		for _, ps := range periodStats {
			if ps.Period == period {
				payload.TypeStats = append(payload.TypeStats, ps)
			}
		}

		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal analytics %s: %w", period, err)
		}
		if err := e.store.PutAnalyticsCache(ctx, period, data); err != nil {
			return err
		}
	}
	return nil
}

func filterDaily(rows []store.DailyStat, cut string) []store.DailyStat {
	out := make([]store.DailyStat, 0, len(rows))
	for _, r := range rows {
		if r.Date >= cut {
			out = append(out, r)
		}
	}
	return out
}

func filterFacts(facts []store.Fact, cut string) []store.Fact {
	out := make([]store.Fact, 0, len(facts))
	for _, f := range facts {
		if f.Date >= cut {
			out = append(out, f)
		}
	}
	return out
}
