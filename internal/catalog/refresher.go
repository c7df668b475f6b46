package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher produces a full replacement catalog snapshot. Implementations own
// whatever source-specific retrieval is needed; the refresher only consumes
// the result.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// DefaultSchedule refreshes the catalog hourly.
const DefaultSchedule = "@hourly"

// Refresher periodically replaces the store's snapshot from a Fetcher.
// A failed fetch is logged and skipped; the previous snapshot stays live.
type Refresher struct {
	store    *Store
	fetcher  Fetcher
	schedule string
}

func NewRefresher(store *Store, fetcher Fetcher) *Refresher {
	return &Refresher{
		store:    store,
		fetcher:  fetcher,
		schedule: DefaultSchedule,
	}
}

// Run refreshes once immediately, then on the cron schedule until the
// context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	logger := log.With().Str("component", "catalog_refresher").Logger()
	logger.Info().Str("schedule", r.schedule).Msg("starting catalog refresher")

	r.refresh(ctx, logger)

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.refresh(ctx, logger) }); err != nil {
		logger.Error().Err(err).Msg("invalid refresh schedule")
		return
	}
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	logger.Info().Msg("shutting down catalog refresher")
}

func (r *Refresher) refresh(ctx context.Context, logger zerolog.Logger) {
	snap, err := r.fetcher.Fetch(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("catalog refresh failed, keeping previous snapshot")
		return
	}

	r.store.Replace(snap)
	logger.Info().
		Int("momos", len(snap.Momos)).
		Int("gems", len(snap.Gems)).
		Msg("catalog snapshot replaced")
}

// HTTPFetcher retrieves the catalog as JSON from a metadata endpoint.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
}

func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type catalogDocument struct {
	Momos map[string]struct {
		Prototype int64  `json:"prototype"`
		TokenName string `json:"tokenName"`
		Name      string `json:"name"`
		Quality   int64  `json:"quality"`
		Category  int64  `json:"category"`
		MmNum     int64  `json:"mmNum"`
	} `json:"momos"`
	GemIDs []int64 `json:"gems"`
}

// Fetch downloads and decodes the catalog document. Gem display metadata is
// derived from the fixed family tables; unknown gem ids are dropped.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("catalog fetch: status %d", resp.StatusCode)
	}

	var doc catalogDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("catalog decode: %w", err)
	}

	snap := Snapshot{
		Momos: make(map[int64]MomoMeta, len(doc.Momos)),
		Gems:  make(map[int64]GemMeta, len(doc.GemIDs)),
	}
	for _, m := range doc.Momos {
		snap.Momos[m.Prototype] = MomoMeta{
			Prototype: m.Prototype,
			TokenName: m.TokenName,
			Name:      m.Name,
			Quality:   m.Quality,
			Category:  m.Category,
			MmNum:     m.MmNum,
		}
	}
	for _, id := range doc.GemIDs {
		if meta, ok := GemMetaFor(id); ok {
			snap.Gems[id] = meta
		}
	}
	return snap, nil
}
