// Package ranking computes per-(period, content type) title rankings with
// rank-delta tracking against the preceding window, plus the append-only
// daily ranking history.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/maruto/dlstats/internal/store"
)

const dateFormat = "2006-01-02"

// Entry is one title's download total within a window.
type Entry struct {
	TID       string
	Downloads int64
}

// Ranked is an Entry with its position assigned.
type Ranked struct {
	TID       string
	Rank      int
	Downloads int64
}

// Rank orders entries by downloads descending, identifier ascending on
// ties, and assigns 1-based ranks. The tie-break makes repeated runs over
// the same data produce identical rankings.
func Rank(entries []Entry) []Ranked {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Downloads != sorted[j].Downloads {
			return sorted[i].Downloads > sorted[j].Downloads
		}
		return sorted[i].TID < sorted[j].TID
	})

	ranked := make([]Ranked, len(sorted))
	for i, e := range sorted {
		ranked[i] = Ranked{TID: e.TID, Rank: i + 1, Downloads: e.Downloads}
	}
	return ranked
}

// Engine computes and persists rankings for every (period, content type)
// combination.
type Engine struct {
	store store.Store
	now   func() time.Time
	log   zerolog.Logger
}

// New creates a ranking engine.
func New(st store.Store, log zerolog.Logger) *Engine {
	return &Engine{store: st, now: time.Now, log: log}
}

// Run recomputes every ranking scope from the current fact table.
func (e *Engine) Run(ctx context.Context) error {
	titles, err := e.store.Titles(ctx)
	if err != nil {
		return fmt.Errorf("load titles: %w", err)
	}
	facts, err := e.store.Facts(ctx)
	if err != nil {
		return fmt.Errorf("load facts: %w", err)
	}

	for _, period := range store.AllPeriods() {
		for _, ct := range store.RankedTypes() {
			if err := e.runScope(ctx, period, ct, titles, facts); err != nil {
				return fmt.Errorf("rank %s/%s: %w", period, ct, err)
			}
		}
	}
	return nil
}

// runScope ranks one (period, content type) combination: replace the
// current rankings and append today's history rows.
func (e *Engine) runScope(ctx context.Context, period store.Period, ct store.ContentType, titles []store.Title, facts []store.Fact) error {
	now := e.now().UTC()
	current := Rank(windowEntries(titles, facts, ct, period, now, false))

	// The all-time window has no predecessor; it compares against itself,
	// so every delta is zero.
	previous := current
	if period != store.PeriodAll {
		previous = Rank(windowEntries(titles, facts, ct, period, now, true))
	}
	prevByTID := make(map[string]Ranked, len(previous))
	for _, p := range previous {
		prevByTID[p.TID] = p
	}

	today := now.Format(dateFormat)
	rows := make([]store.Ranking, 0, len(current))
	history := make([]store.RankingHistory, 0, len(current))
	var up, down int

	for _, c := range current {
		row := store.Ranking{
			TID:         c.TID,
			Period:      period,
			ContentType: ct,
			Rank:        c.Rank,
			Downloads:   c.Downloads,
			LastUpdated: now,
		}
		if p, ok := prevByTID[c.TID]; ok {
			prevRank := p.Rank
			row.PreviousRank = &prevRank
			row.RankChange = p.Rank - c.Rank
			row.PreviousDownloads = p.Downloads
		}
		switch {
		case row.RankChange > 0:
			up++
		case row.RankChange < 0:
			down++
		}

		rows = append(rows, row)
		history = append(history, store.RankingHistory{
			TID:         c.TID,
			Period:      period,
			ContentType: ct,
			Rank:        c.Rank,
			Downloads:   c.Downloads,
			Date:        today,
		})
	}

	if err := e.store.ReplaceRankings(ctx, period, ct, rows); err != nil {
		return err
	}
	appended, err := e.store.InsertRankingHistory(ctx, history)
	if err != nil {
		return err
	}

	e.log.Info().
		Str("period", string(period)).
		Str("content_type", string(ct)).
		Int("ranked", len(rows)).
		Int("moved_up", up).
		Int("moved_down", down).
		Int("unchanged", len(rows)-up-down).
		Int64("history_appended", appended).
		Msg("rankings replaced")
	e.logMovers(rows)
	return nil
}

// logMovers reports the largest rank swings in a scope, for operators.
func (e *Engine) logMovers(rows []store.Ranking) {
	movers := make([]store.Ranking, 0, len(rows))
	for _, r := range rows {
		if r.RankChange != 0 {
			movers = append(movers, r)
		}
	}
	sort.Slice(movers, func(i, j int) bool {
		return abs(movers[i].RankChange) > abs(movers[j].RankChange)
	})
	if len(movers) > 5 {
		movers = movers[:5]
	}
	for _, m := range movers {
		e.log.Debug().
			Str("tid", m.TID).
			Int("rank", m.Rank).
			Int("change", m.RankChange).
			Msg("ranking mover")
	}
}

// windowEntries returns the download total per qualifying title for the
// scope's window. Titles of the content type with no facts in the window
// still qualify with zero downloads; the all-time window uses the title's
// cumulative total instead of summing facts.
func windowEntries(titles []store.Title, facts []store.Fact, ct store.ContentType, period store.Period, now time.Time, previous bool) []Entry {
	downloads := make(map[string]int64)
	for _, t := range titles {
		if t.Kind() != ct {
			continue
		}
		if period == store.PeriodAll {
			downloads[t.TID] = t.TotalDownloads
		} else {
			downloads[t.TID] = 0
		}
	}

	if period != store.PeriodAll {
		from := windowStart(now, period.Days())
		to := ""
		if previous {
			to = from
			from = windowStart(now, period.PrevDays())
		}
		for _, f := range facts {
			if _, ok := downloads[f.TID]; !ok {
				continue
			}
			if f.Date >= from && (to == "" || f.Date < to) {
				downloads[f.TID] += f.Count
			}
		}
	}

	entries := make([]Entry, 0, len(downloads))
	for tid, count := range downloads {
		entries = append(entries, Entry{TID: tid, Downloads: count})
	}
	return entries
}

func windowStart(now time.Time, days int) string {
	return now.UTC().AddDate(0, 0, -days).Format(dateFormat)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
