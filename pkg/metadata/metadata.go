// Package metadata merges the two external title-metadata feeds into a
// single lookup keyed by identifier. Feed failures degrade to a partial or
// empty lookup; they never fail the ingestion run.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrFetchFailed reports an unreachable or unparsable metadata feed.
var ErrFetchFailed = errors.New("metadata fetch failed")

// Info is the merged metadata for one title. Zero-value fields mean the
// feeds had nothing for them.
type Info struct {
	Name        string
	Version     string
	Size        int64
	ReleaseDate string
}

// Lookup maps title identifiers to merged metadata.
type Lookup map[string]Info

// Fetcher loads and merges the structured catalog and the pipe-delimited
// titles feed.
type Fetcher struct {
	catalogURL string
	titlesURL  string
	client     *http.Client
	log        zerolog.Logger
}

// NewFetcher creates a Fetcher with a bounded request timeout.
func NewFetcher(catalogURL, titlesURL string, timeout time.Duration, log zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		catalogURL: catalogURL,
		titlesURL:  titlesURL,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

// catalogEntry mirrors the structured catalog's value shape.
type catalogEntry struct {
	Name    string `json:"Game Name"`
	Version string `json:"Version"`
	Size    int64  `json:"Size"`
}

// titleRecord is one parsed line of the pipe-delimited feed.
type titleRecord struct {
	Name        string
	Size        int64
	ReleaseDate string
}

// Fetch loads both feeds concurrently and merges them. A failed feed is
// logged and treated as empty, so the result may be partial.
func (f *Fetcher) Fetch(ctx context.Context) Lookup {
	var (
		wg      sync.WaitGroup
		catalog map[string]catalogEntry
		titles  map[string]titleRecord
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		catalog, err = f.fetchCatalog(ctx)
		if err != nil {
			f.log.Warn().Err(err).Str("url", f.catalogURL).Msg("catalog feed unavailable, continuing without it")
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		titles, err = f.fetchTitles(ctx)
		if err != nil {
			f.log.Warn().Err(err).Str("url", f.titlesURL).Msg("titles feed unavailable, continuing without it")
		}
	}()
	wg.Wait()

	lookup := merge(catalog, titles)
	f.log.Info().
		Int("catalog_entries", len(catalog)).
		Int("titles_entries", len(titles)).
		Int("merged", len(lookup)).
		Msg("metadata feeds merged")
	return lookup
}

// merge layers the two sources: the catalog wins for name/version/size,
// the titles feed fills gaps and supplies the release date for every
// identifier that has one.
func merge(catalog map[string]catalogEntry, titles map[string]titleRecord) Lookup {
	lookup := make(Lookup, len(catalog)+len(titles))

	for tid, e := range catalog {
		lookup[tid] = Info{Name: e.Name, Version: e.Version, Size: e.Size}
	}
	for tid, r := range titles {
		info, ok := lookup[tid]
		if !ok {
			info = Info{Name: r.Name, Size: r.Size}
		}
		info.ReleaseDate = r.ReleaseDate
		lookup[tid] = info
	}
	return lookup
}

func (f *Fetcher) fetchCatalog(ctx context.Context) (map[string]catalogEntry, error) {
	body, err := f.get(ctx, f.catalogURL)
	if err != nil {
		return nil, err
	}

	var catalog map[string]catalogEntry
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("%w: parse catalog: %v", ErrFetchFailed, err)
	}
	return catalog, nil
}

func (f *Fetcher) fetchTitles(ctx context.Context) (map[string]titleRecord, error) {
	body, err := f.get(ctx, f.titlesURL)
	if err != nil {
		return nil, err
	}
	return parseTitlesFeed(string(body)), nil
}

// parseTitlesFeed parses identifier|releaseDate|name|size lines. Records
// missing any of identifier, date, or name are discarded.
func parseTitlesFeed(text string) map[string]titleRecord {
	records := make(map[string]titleRecord)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			continue
		}
		tid, date, name := fields[0], fields[1], fields[2]
		if tid == "" || date == "" || name == "" {
			continue
		}

		var size int64
		if len(fields) > 3 {
			size, _ = strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		}
		records[tid] = titleRecord{Name: name, Size: size, ReleaseDate: date}
	}
	return records
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetchFailed, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	return body, nil
}
