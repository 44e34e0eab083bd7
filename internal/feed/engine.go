// Package feed holds the merge engine: concurrent fan-out across platform
// adapters, a single time-ordered deduplicated stream out, cache and cursor
// bookkeeping on the way through.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/models"
	"socialhub/aggregator/internal/platform"
)

// ErrUnknownScope is returned when a scope names no known platform.
var ErrUnknownScope = errors.New("unknown feed scope")

// Scope selects which platforms participate in a page fetch.
type Scope string

// ScopeAggregated fans out to every active account. Any other scope value
// names a single platform.
const ScopeAggregated Scope = "aggregated"

// Warning reports one platform's failure on an otherwise successful page.
type Warning struct {
	Platform  models.Platform `json:"platform"`
	Reason    string          `json:"reason"`
	Retryable bool            `json:"retryable"`
}

// Page is one delivered slice of the unified feed.
type Page struct {
	Items        []models.Post `json:"items"`
	Warnings     []Warning     `json:"warnings,omitempty"`
	Continuation string        `json:"continuation,omitempty"`
}

// Store is the slice of the cache store the engine needs.
type Store interface {
	ActiveAccounts(ctx context.Context) ([]models.ConnectedAccount, error)
	ActiveAccountForPlatform(ctx context.Context, p models.Platform) (*models.ConnectedAccount, error)
	UpsertPost(ctx context.Context, post *models.Post) error
	GetCursor(ctx context.Context, p models.Platform) (*models.SyncCursor, error)
	SaveCursor(ctx context.Context, p models.Platform, token string, syncTime time.Time) error
	ResetCursor(ctx context.Context, p models.Platform) error
}

// Engine merges pages from many platforms into one cursor-stable stream.
// It is the only writer of post rows and sync cursors.
type Engine struct {
	store    Store
	registry *platform.Registry

	fetchTimeout time.Duration
	now          func() time.Time

	// overflow holds fetched-but-undelivered items per platform. A platform
	// with buffered items is not queried remotely until its buffer drains.
	mu       sync.Mutex
	overflow map[models.Platform][]models.Post
}

// Config tunes the engine.
type Config struct {
	FetchTimeout time.Duration // per-platform remote call budget
	Now          func() time.Time
}

// NewEngine creates a merge engine over a store and an adapter registry.
func NewEngine(store Store, registry *platform.Registry, cfg Config) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:        store,
		registry:     registry,
		fetchTimeout: cfg.FetchTimeout,
		now:          cfg.Now,
		overflow:     make(map[models.Platform][]models.Post),
	}
}

type fetchOutcome struct {
	platform models.Platform
	result   platform.FetchResult
	err      error
}

// FetchNextPage returns the next page of the unified feed for a scope.
// Platforms fail independently: a failed platform keeps its cursor, shows up
// as a warning, and is retried naturally on the caller's next page request.
// Only when every resolved platform fails does the call return an error.
func (e *Engine) FetchNextPage(ctx context.Context, scope Scope, pageSize int) (*Page, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("pageSize must be positive, got %d", pageSize)
	}

	platforms, err := e.resolvePlatforms(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		return &Page{Items: []models.Post{}}, nil
	}

	// Overflow state belongs to the engine, so page assembly is serialized.
	e.mu.Lock()
	defer e.mu.Unlock()

	var buffered []models.Post
	var toQuery []models.Platform
	for _, p := range platforms {
		if len(e.overflow[p]) > 0 {
			buffered = append(buffered, e.overflow[p]...)
			continue
		}
		toQuery = append(toQuery, p)
	}

	outcomes := e.fanOut(ctx, toQuery)

	// Discard-on-cancel: a cancelled fetch must not advance cursors or touch
	// the cache, even if some platform tasks finished in time.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failures := make(map[models.Platform]error)
	var warnings []Warning
	var fetched []models.Post
	advanced := make(map[models.Platform]string)

	for _, outcome := range outcomes {
		if outcome.err != nil {
			failures[outcome.platform] = outcome.err
			warnings = append(warnings, Warning{
				Platform:  outcome.platform,
				Reason:    outcome.err.Error(),
				Retryable: platform.IsTransient(outcome.err),
			})
			log.Warn().
				Err(outcome.err).
				Str("platform", string(outcome.platform)).
				Msg("Platform fetch failed, retained prior cursor")
			continue
		}
		fetched = append(fetched, outcome.result.Items...)
		if len(outcome.result.Items) > 0 {
			// Zero-item results leave the cursor untouched so an idle
			// platform cannot drift.
			advanced[outcome.platform] = outcome.result.NextCursor
		}
	}

	if len(failures) == len(platforms) && len(platforms) > 0 {
		return nil, &platform.AggregateFetchError{Failures: failures}
	}

	merged := mergePosts(append(buffered, fetched...))

	page := merged
	var rest []models.Post
	if len(merged) > pageSize {
		page = merged[:pageSize]
		rest = merged[pageSize:]
	}

	// Rebuild the buffers for every platform that contributed to this merge.
	for _, p := range platforms {
		delete(e.overflow, p)
	}
	for _, post := range rest {
		e.overflow[post.Platform] = append(e.overflow[post.Platform], post)
	}

	// Every normalized post is cached, delivered or buffered alike, so a
	// crash before delivery only costs a re-merge, never data.
	for i := range fetched {
		if err := e.store.UpsertPost(ctx, &fetched[i]); err != nil {
			log.Error().Err(err).Str("post_id", fetched[i].ID).Msg("Failed to cache post")
		}
	}

	syncTime := e.now().UTC()
	cursors := make(map[models.Platform]string)
	for _, p := range platforms {
		if token, ok := advanced[p]; ok {
			if err := e.store.SaveCursor(ctx, p, token, syncTime); err != nil {
				log.Error().Err(err).Str("platform", string(p)).Msg("Failed to save cursor")
				continue
			}
			cursors[p] = token
		} else if prior, err := e.store.GetCursor(ctx, p); err == nil && prior != nil && prior.Cursor.Valid {
			cursors[p] = prior.Cursor.String
		}
	}

	continuation, err := EncodeContinuation(Continuation{Cursors: cursors, GeneratedAt: syncTime})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode continuation marker")
	}

	log.Debug().
		Str("scope", string(scope)).
		Int("page_items", len(page)).
		Int("buffered", len(rest)).
		Int("warnings", len(warnings)).
		Msg("Feed page assembled")

	return &Page{Items: page, Warnings: warnings, Continuation: continuation}, nil
}

// resolvePlatforms maps a scope onto the distinct active platforms.
func (e *Engine) resolvePlatforms(ctx context.Context, scope Scope) ([]models.Platform, error) {
	if scope == ScopeAggregated {
		accounts, err := e.store.ActiveAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve active accounts: %w", err)
		}
		seen := make(map[models.Platform]bool)
		var platforms []models.Platform
		for _, a := range accounts {
			if !seen[a.Platform] {
				seen[a.Platform] = true
				platforms = append(platforms, a.Platform)
			}
		}
		return platforms, nil
	}

	p := models.Platform(scope)
	if !p.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownScope, scope)
	}
	account, err := e.store.ActiveAccountForPlatform(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account for %s: %w", p, err)
	}
	if account == nil {
		// Inactive platform scope yields an empty page, not an error.
		return nil, nil
	}
	return []models.Platform{p}, nil
}

// fanOut queries each platform concurrently, at most once per call. Results
// are collected single-threaded after all tasks join, so merge needs no locks.
func (e *Engine) fanOut(ctx context.Context, platforms []models.Platform) []fetchOutcome {
	if len(platforms) == 0 {
		return nil
	}

	results := make(chan fetchOutcome, len(platforms))
	var wg sync.WaitGroup

	for _, p := range platforms {
		adapter, ok := e.registry.Lookup(p)
		if !ok {
			results <- fetchOutcome{platform: p, err: &platform.PermanentError{
				Platform: p, Err: fmt.Errorf("no adapter registered"),
			}}
			continue
		}

		wg.Add(1)
		go func(p models.Platform, adapter platform.Adapter) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()

			cursor := ""
			if prior, err := e.store.GetCursor(fetchCtx, p); err != nil {
				results <- fetchOutcome{platform: p, err: &platform.TransientError{Platform: p, Err: err}}
				return
			} else if prior != nil && prior.Cursor.Valid {
				cursor = prior.Cursor.String
			}

			result, err := adapter.FetchPage(fetchCtx, cursor)
			results <- fetchOutcome{platform: p, result: result, err: err}
		}(p, adapter)
	}

	wg.Wait()
	close(results)

	outcomes := make([]fetchOutcome, 0, len(platforms))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// mergePosts orders a combined batch newest-first with a deterministic
// tie-break and drops duplicate ids, keeping the first in sort order.
// Duplicates are expected when cursors overlap after a retry.
func mergePosts(posts []models.Post) []models.Post {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].PublishedAt.Equal(posts[j].PublishedAt) {
			return posts[i].PublishedAt.After(posts[j].PublishedAt)
		}
		if posts[i].Platform != posts[j].Platform {
			return posts[i].Platform < posts[j].Platform
		}
		return posts[i].PlatformID < posts[j].PlatformID
	})

	seen := make(map[string]bool, len(posts))
	out := posts[:0]
	for _, p := range posts {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// BufferedCount reports how many undelivered items are held for a platform.
func (e *Engine) BufferedCount(p models.Platform) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.overflow[p])
}

// Reset drops the overflow buffer and the persisted cursor for a platform.
// This is the one sanctioned cursor rollback: an explicit feed reset.
func (e *Engine) Reset(ctx context.Context, p models.Platform) error {
	e.mu.Lock()
	delete(e.overflow, p)
	e.mu.Unlock()
	return e.store.ResetCursor(ctx, p)
}
