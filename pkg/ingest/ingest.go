// Package ingest reads per-title download-count files and upserts them into
// the store in fixed-size atomic batches.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maruto/dlstats/internal/store"
	"github.com/maruto/dlstats/pkg/metadata"
	"github.com/maruto/dlstats/pkg/title"
)

// ErrFactParse reports a malformed fact file. It aborts the containing
// batch: a corrupt fact file means the data directory needs inspection.
var ErrFactParse = errors.New("fact file parse failed")

// FileSuffix is the naming convention for per-title fact files.
const FileSuffix = "_downloads.json"

// DefaultBatchSize bounds transaction size and memory per batch.
const DefaultBatchSize = 1000

// factFile is the JSON payload of one per-title fact file.
type factFile struct {
	TotalDownloads int64            `json:"total_downloads"`
	PerDate        map[string]int64 `json:"per_date"`
}

// Ingestor reads a data directory of fact files into the store.
type Ingestor struct {
	store     store.Store
	dir       string
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

// New creates an Ingestor over the given data directory.
func New(st store.Store, dir string, batchSize int, log zerolog.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Ingestor{
		store:     st,
		dir:       dir,
		batchSize: batchSize,
		now:       time.Now,
		log:       log,
	}
}

// Run ingests every fact file in the data directory, committing one
// transaction per batch. A parse failure aborts the run; batches committed
// before it remain durable.
func (in *Ingestor) Run(ctx context.Context, lookup metadata.Lookup) error {
	files, err := in.listFiles()
	if err != nil {
		return err
	}
	in.log.Info().Int("files", len(files)).Str("dir", in.dir).Msg("starting ingestion")

	for start := 0; start < len(files); start += in.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+in.batchSize, len(files))
		entries, err := in.buildBatch(files[start:end], lookup)
		if err != nil {
			return err
		}
		if err := in.store.ApplyBatch(ctx, entries); err != nil {
			return fmt.Errorf("apply batch at %d: %w", start, err)
		}

		in.log.Info().
			Int("processed", end).
			Int("total", len(files)).
			Str("progress", fmt.Sprintf("%.1f%%", float64(end)/float64(len(files))*100)).
			Msg("batch committed")
	}
	return nil
}

// listFiles returns the fact files in the data directory, sorted by name so
// batch boundaries are stable across runs.
func (in *Ingestor) listFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", in.dir, err)
	}

	var files []string
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileSuffix) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// buildBatch parses one batch of files into store rows. Malformed JSON
// fails the batch; an invalid identifier only skips its file.
func (in *Ingestor) buildBatch(files []string, lookup metadata.Lookup) ([]store.TitleFacts, error) {
	entries := make([]store.TitleFacts, 0, len(files))
	now := in.now().UTC()

	for _, name := range files {
		tid := strings.TrimSuffix(name, FileSuffix)
		info, err := title.Classify(tid)
		if err != nil {
			in.log.Warn().Err(err).Str("file", name).Msg("skipping file with invalid identifier")
			continue
		}

		data, err := os.ReadFile(filepath.Join(in.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read fact file %s: %w", name, err)
		}
		var ff factFile
		if err := json.Unmarshal(data, &ff); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFactParse, name, err)
		}

		entries = append(entries, makeEntry(info, ff, lookup[tid], now))
	}
	return entries, nil
}

// makeEntry builds the dimension row and fact rows for one title.
func makeEntry(info title.Info, ff factFile, meta metadata.Info, now time.Time) store.TitleFacts {
	t := store.Title{
		TID:            info.ID,
		Name:           nullStr(meta.Name),
		Version:        nullStr(meta.Version),
		Size:           nullInt(meta.Size),
		ReleaseDate:    nullStr(meta.ReleaseDate),
		IsBase:         info.IsBase(),
		IsUpdate:       info.IsUpdate(),
		IsDLC:          info.IsDLC(),
		TotalDownloads: ff.TotalDownloads,
		LastUpdated:    now,
	}
	if !info.IsBase() {
		base := info.BaseID
		t.BaseTID = &base
	}

	facts := make([]store.Fact, 0, len(ff.PerDate))
	for date, count := range ff.PerDate {
		facts = append(facts, store.Fact{TID: info.ID, Date: date, Count: count})
	}
	sort.Slice(facts, func(i, j int) bool { return facts[i].Date < facts[j].Date })

	return store.TitleFacts{Title: t, Facts: facts}
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}
