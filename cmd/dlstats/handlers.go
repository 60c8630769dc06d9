package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/maruto/dlstats/internal/config"
	"github.com/maruto/dlstats/internal/scheduler"
	"github.com/maruto/dlstats/internal/store"
	"github.com/maruto/dlstats/pkg/ingest"
	"github.com/maruto/dlstats/pkg/metadata"
	"github.com/maruto/dlstats/pkg/ranking"
	"github.com/maruto/dlstats/pkg/rollup"
	"github.com/maruto/dlstats/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Logging.Console {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func buildScheduler(cfg *config.Config, db store.Store, log zerolog.Logger) *scheduler.Scheduler {
	meta := metadata.NewFetcher(
		cfg.Metadata.CatalogURL,
		cfg.Metadata.TitlesURL,
		cfg.Metadata.ParseTimeout(),
		log.With().Str("component", "metadata").Logger(),
	)
	ing := ingest.New(db, cfg.Indexer.DataDir, cfg.Indexer.BatchSize,
		log.With().Str("component", "ingest").Logger())
	rol := rollup.New(db, cfg.Indexer.HomePageLimit,
		log.With().Str("component", "rollup").Logger())
	ran := ranking.New(db,
		log.With().Str("component", "ranking").Logger())

	return scheduler.New(meta, ing, rol, ran, cfg.Schedule.ParseIndexInterval(),
		log.With().Str("component", "scheduler").Logger())
}

func runIndex(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	return buildScheduler(cfg, db, log).RunOnce(ctx)
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	srv := server.New(db, cfg.Server.ParseCacheTTL(), port,
		log.With().Str("component", "server").Logger())
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := buildScheduler(cfg, db, log)
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	srv := server.New(db, cfg.Server.ParseCacheTTL(), port,
		log.With().Str("component", "server").Logger())
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
	}()

	return srv.ListenAndServe()
}

func runStats(ctx context.Context, periodFlag string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	period := store.Period(periodFlag)
	if !period.Valid() {
		return fmt.Errorf("invalid period %q (want 72h, 7d, 30d, or all)", periodFlag)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if ctx == nil {
		ctx = context.Background()
	}

	gs, err := db.GlobalStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("downloads: last 72h %s (%+.1f%%), last 7d %s (%+.1f%%), last 30d %s (%+.1f%%), all time %s\n",
		humanize.Comma(gs.Last72h), gs.Evolution72h,
		humanize.Comma(gs.Last7d), gs.Evolution7d,
		humanize.Comma(gs.Last30d), gs.Evolution30d,
		humanize.Comma(gs.AllTime))

	for _, ps := range mustPeriodStats(ctx, db, period) {
		if ps.ContentType != store.TypeAll {
			continue
		}
		fmt.Printf("%s window: %s downloads, %s transferred, %d unique titles, growth %+.1f%%\n",
			ps.Period, humanize.Comma(ps.TotalDownloads),
			humanize.Bytes(uint64(ps.DataTransferred)),
			ps.UniqueItems, ps.GrowthRate)
	}

	rows, err := db.TopRankings(ctx, period, store.TypeBase, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no rankings yet (run: dlstats index)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tCHANGE\tTID\tNAME\tDOWNLOADS\tUPDATED")
	for _, r := range rows {
		name := ""
		if r.Name != nil {
			name = *r.Name
		}
		fmt.Fprintf(w, "%d\t%+d\t%s\t%s\t%s\t%s\n",
			r.Rank, r.RankChange, r.TID, name,
			humanize.Comma(r.Downloads),
			r.LastUpdated.Format(time.RFC3339))
	}
	return w.Flush()
}

func mustPeriodStats(ctx context.Context, db store.Store, period store.Period) []store.PeriodStat {
	rows, err := db.PeriodStats(ctx, period)
	if err != nil {
		return nil
	}
	return rows
}
