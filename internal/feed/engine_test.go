package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"socialhub/aggregator/internal/models"
	"socialhub/aggregator/internal/platform"
)

type fakeStore struct {
	mu       sync.Mutex
	accounts []models.ConnectedAccount
	cursors  map[models.Platform]string
	posts    map[string]models.Post
}

func newFakeStore(platforms ...models.Platform) *fakeStore {
	s := &fakeStore{
		cursors: make(map[models.Platform]string),
		posts:   make(map[string]models.Post),
	}
	for i, p := range platforms {
		s.accounts = append(s.accounts, models.ConnectedAccount{
			ID:       fmt.Sprintf("acct_%d", i),
			Platform: p,
			IsActive: true,
		})
	}
	return s
}

func (s *fakeStore) ActiveAccounts(ctx context.Context) ([]models.ConnectedAccount, error) {
	return s.accounts, nil
}

func (s *fakeStore) ActiveAccountForPlatform(ctx context.Context, p models.Platform) (*models.ConnectedAccount, error) {
	for i := range s.accounts {
		if s.accounts[i].Platform == p {
			return &s.accounts[i], nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UpsertPost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = *post
	return nil
}

func (s *fakeStore) GetCursor(ctx context.Context, p models.Platform) (*models.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.cursors[p]
	if !ok {
		return nil, nil
	}
	return &models.SyncCursor{
		Platform: p,
		Cursor:   sql.NullString{String: token, Valid: true},
	}, nil
}

func (s *fakeStore) SaveCursor(ctx context.Context, p models.Platform, token string, syncTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[p] = token
	return nil
}

func (s *fakeStore) ResetCursor(ctx context.Context, p models.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, p)
	return nil
}

// fakeAdapter serves canned pages keyed by the cursor it receives.
type fakeAdapter struct {
	platform models.Platform
	pages    map[string]platform.FetchResult
	err      error

	mu      sync.Mutex
	fetches []string
}

func (a *fakeAdapter) Platform() models.Platform     { return a.platform }
func (a *fakeAdapter) Supports(platform.Action) bool { return false }

func (a *fakeAdapter) FetchPage(ctx context.Context, cursor string) (platform.FetchResult, error) {
	a.mu.Lock()
	a.fetches = append(a.fetches, cursor)
	a.mu.Unlock()
	if a.err != nil {
		return platform.FetchResult{}, a.err
	}
	return a.pages[cursor], nil
}

func (a *fakeAdapter) PerformAction(ctx context.Context, req platform.ActionRequest) (platform.ActionOutcome, error) {
	return platform.ActionOutcome{}, &platform.CapabilityError{Platform: a.platform, Action: req.Action}
}

func (a *fakeAdapter) fetchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fetches)
}

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func makePost(p models.Platform, platformID string, minutesAgo int) models.Post {
	return models.Post{
		ID:          models.PostID(p, platformID),
		Platform:    p,
		PlatformID:  platformID,
		PublishedAt: testEpoch.Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func postIDs(posts []models.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestFetchNextPageOrdering(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky, models.PlatformMastodon)
	bsky := &fakeAdapter{platform: models.PlatformBluesky, pages: map[string]platform.FetchResult{
		"": {Items: []models.Post{
			makePost(models.PlatformBluesky, "b1", 5),
			makePost(models.PlatformBluesky, "b2", 20),
		}, NextCursor: "bsky_1"},
	}}
	masto := &fakeAdapter{platform: models.PlatformMastodon, pages: map[string]platform.FetchResult{
		"": {Items: []models.Post{
			makePost(models.PlatformMastodon, "m1", 10),
			// Same timestamp as b2: tie breaks on platform name.
			makePost(models.PlatformMastodon, "m2", 20),
		}, NextCursor: "masto_1"},
	}}

	engine := NewEngine(store, platform.NewRegistry(bsky, masto), Config{Now: func() time.Time { return testEpoch }})

	page, err := engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	if err != nil {
		t.Fatalf("FetchNextPage failed: %v", err)
	}

	want := []string{"bluesky:b1", "mastodon:m1", "bluesky:b2", "mastodon:m2"}
	got := postIDs(page.Items)
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if store.cursors[models.PlatformBluesky] != "bsky_1" {
		t.Errorf("expected bluesky cursor bsky_1, got %q", store.cursors[models.PlatformBluesky])
	}
	if store.cursors[models.PlatformMastodon] != "masto_1" {
		t.Errorf("expected mastodon cursor masto_1, got %q", store.cursors[models.PlatformMastodon])
	}
	if len(store.posts) != 4 {
		t.Errorf("expected 4 cached posts, got %d", len(store.posts))
	}
}

func TestFetchNextPageDeduplicates(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky)
	dup := makePost(models.PlatformBluesky, "b1", 5)
	adapter := &fakeAdapter{platform: models.PlatformBluesky, pages: map[string]platform.FetchResult{
		"": {Items: []models.Post{dup, dup, makePost(models.PlatformBluesky, "b2", 10)}, NextCursor: "c1"},
	}}

	engine := NewEngine(store, platform.NewRegistry(adapter), Config{})

	page, err := engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	if err != nil {
		t.Fatalf("FetchNextPage failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items after dedupe, got %d: %v", len(page.Items), postIDs(page.Items))
	}
}

func TestFetchNextPagePartialFailure(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky, models.PlatformMastodon)
	store.cursors[models.PlatformBluesky] = "stale"

	bsky := &fakeAdapter{platform: models.PlatformBluesky, err: &platform.TransientError{
		Platform: models.PlatformBluesky, Err: errors.New("connection reset"),
	}}
	masto := &fakeAdapter{platform: models.PlatformMastodon, pages: map[string]platform.FetchResult{
		"": {Items: []models.Post{makePost(models.PlatformMastodon, "m1", 5)}, NextCursor: "masto_1"},
	}}

	engine := NewEngine(store, platform.NewRegistry(bsky, masto), Config{})

	page, err := engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
	if len(page.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(page.Warnings))
	}
	if page.Warnings[0].Platform != models.PlatformBluesky {
		t.Errorf("expected bluesky warning, got %s", page.Warnings[0].Platform)
	}
	if !page.Warnings[0].Retryable {
		t.Error("expected transient failure to be marked retryable")
	}
	// The failed platform keeps its prior cursor.
	if store.cursors[models.PlatformBluesky] != "stale" {
		t.Errorf("expected bluesky cursor unchanged, got %q", store.cursors[models.PlatformBluesky])
	}
	if store.cursors[models.PlatformMastodon] != "masto_1" {
		t.Errorf("expected mastodon cursor masto_1, got %q", store.cursors[models.PlatformMastodon])
	}
}

func TestFetchNextPageAllPlatformsFail(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky, models.PlatformMastodon)
	bsky := &fakeAdapter{platform: models.PlatformBluesky, err: &platform.TransientError{
		Platform: models.PlatformBluesky, Err: errors.New("timeout"),
	}}
	masto := &fakeAdapter{platform: models.PlatformMastodon, err: &platform.PermanentError{
		Platform: models.PlatformMastodon, Err: errors.New("token revoked"),
	}}

	engine := NewEngine(store, platform.NewRegistry(bsky, masto), Config{})

	_, err := engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	var agg *platform.AggregateFetchError
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregateFetchError, got %v", err)
	}
	if len(agg.Failures) != 2 {
		t.Errorf("expected 2 failures, got %d", len(agg.Failures))
	}
}

func TestFetchNextPageNoActiveAccounts(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, platform.NewRegistry(), Config{})

	page, err := engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	if err != nil {
		t.Fatalf("expected empty page, got error: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("expected 0 items, got %d", len(page.Items))
	}
}

func TestFetchNextPageSinglePlatformScope(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky)
	bsky := &fakeAdapter{platform: models.PlatformBluesky, pages: map[string]platform.FetchResult{
		"": {Items: []models.Post{makePost(models.PlatformBluesky, "b1", 5)}, NextCursor: "c1"},
	}}
	engine := NewEngine(store, platform.NewRegistry(bsky), Config{})

	page, err := engine.FetchNextPage(context.Background(), Scope(models.PlatformBluesky), 20)
	if err != nil {
		t.Fatalf("FetchNextPage failed: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}

	// A scope with no active account is an empty page, not an error.
	page, err = engine.FetchNextPage(context.Background(), Scope(models.PlatformMastodon), 20)
	if err != nil {
		t.Fatalf("expected empty page for inactive platform, got error: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("expected 0 items for inactive platform, got %d", len(page.Items))
	}

	if _, err := engine.FetchNextPage(context.Background(), Scope("friendster"), 20); !errors.Is(err, ErrUnknownScope) {
		t.Errorf("expected ErrUnknownScope, got %v", err)
	}
}

func TestFetchNextPageOverflowBuffering(t *testing.T) {
	platforms := []models.Platform{models.PlatformBluesky, models.PlatformMastodon, models.PlatformInstagram}
	store := newFakeStore(platforms...)

	adapters := make([]platform.Adapter, 0, len(platforms))
	fakes := make(map[models.Platform]*fakeAdapter)
	for _, p := range platforms {
		items := make([]models.Post, 10)
		for i := range items {
			items[i] = makePost(p, fmt.Sprintf("%s_%02d", p, i), i+1)
		}
		fa := &fakeAdapter{platform: p, pages: map[string]platform.FetchResult{
			"": {Items: items, NextCursor: "next"},
		}}
		fakes[p] = fa
		adapters = append(adapters, fa)
	}

	engine := NewEngine(store, platform.NewRegistry(adapters...), Config{})

	page, err := engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	if err != nil {
		t.Fatalf("FetchNextPage failed: %v", err)
	}
	if len(page.Items) != 20 {
		t.Fatalf("expected 20 items, got %d", len(page.Items))
	}

	total := 0
	for _, p := range platforms {
		total += engine.BufferedCount(p)
	}
	if total != 10 {
		t.Fatalf("expected 10 buffered items, got %d", total)
	}
	// All 30 fetched items are cached immediately, delivered or not.
	if len(store.posts) != 30 {
		t.Fatalf("expected 30 cached posts, got %d", len(store.posts))
	}

	// The next page drains buffers; platforms still holding overflow are not
	// queried remotely again.
	buffered := make(map[models.Platform]bool)
	for _, p := range platforms {
		if engine.BufferedCount(p) > 0 {
			buffered[p] = true
		}
	}

	page, err = engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	if err != nil {
		t.Fatalf("second FetchNextPage failed: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatal("expected buffered items on second page")
	}
	for p := range buffered {
		if fakes[p].fetchCount() != 1 {
			t.Errorf("platform %s with overflow was re-queried (%d fetches)", p, fakes[p].fetchCount())
		}
	}
}

func TestFetchNextPageDiscardOnCancel(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky)
	bsky := &fakeAdapter{platform: models.PlatformBluesky, pages: map[string]platform.FetchResult{
		"": {Items: []models.Post{makePost(models.PlatformBluesky, "b1", 5)}, NextCursor: "c1"},
	}}
	engine := NewEngine(store, platform.NewRegistry(bsky), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.FetchNextPage(ctx, ScopeAggregated, 20)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(store.posts) != 0 {
		t.Errorf("cancelled fetch must not cache posts, cached %d", len(store.posts))
	}
	if _, ok := store.cursors[models.PlatformBluesky]; ok {
		t.Error("cancelled fetch must not advance cursors")
	}
}

func TestFetchNextPageZeroItemsKeepsCursor(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky)
	store.cursors[models.PlatformBluesky] = "tip"
	bsky := &fakeAdapter{platform: models.PlatformBluesky, pages: map[string]platform.FetchResult{
		"tip": {Items: nil, NextCursor: ""},
	}}
	engine := NewEngine(store, platform.NewRegistry(bsky), Config{})

	page, err := engine.FetchNextPage(context.Background(), ScopeAggregated, 20)
	if err != nil {
		t.Fatalf("FetchNextPage failed: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected 0 items, got %d", len(page.Items))
	}
	if store.cursors[models.PlatformBluesky] != "tip" {
		t.Errorf("zero-item fetch must not move the cursor, got %q", store.cursors[models.PlatformBluesky])
	}
}

func TestReset(t *testing.T) {
	store := newFakeStore(models.PlatformBluesky)
	store.cursors[models.PlatformBluesky] = "deep"
	engine := NewEngine(store, platform.NewRegistry(), Config{})
	engine.overflow[models.PlatformBluesky] = []models.Post{makePost(models.PlatformBluesky, "b1", 5)}

	if err := engine.Reset(context.Background(), models.PlatformBluesky); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if engine.BufferedCount(models.PlatformBluesky) != 0 {
		t.Error("expected overflow cleared after reset")
	}
	if _, ok := store.cursors[models.PlatformBluesky]; ok {
		t.Error("expected cursor cleared after reset")
	}
}
