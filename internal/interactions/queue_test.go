package interactions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"socialhub/aggregator/internal/models"
	"socialhub/aggregator/internal/platform"
)

type fakeStore struct {
	mu           sync.Mutex
	posts        map[string]*models.Post
	interactions map[string]models.Interaction
}

func newFakeStore(posts ...*models.Post) *fakeStore {
	s := &fakeStore{
		posts:        make(map[string]*models.Post),
		interactions: make(map[string]models.Interaction),
	}
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) InsertInteraction(ctx context.Context, in *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[in.ID] = *in
	return nil
}

func (s *fakeStore) UpdateInteractionStatus(ctx context.Context, id, status string, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := s.interactions[id]
	in.Status = status
	in.Attempts = attempts
	in.LastError.String = lastError
	in.LastError.Valid = lastError != ""
	s.interactions[id] = in
	return nil
}

func (s *fakeStore) InteractionsByStatus(ctx context.Context, status string) ([]models.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Interaction
	for _, in := range s.interactions {
		if in.Status == status {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *fakeStore) SetLiked(ctx context.Context, postID string, liked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[postID]; ok {
		p.IsLiked = liked
	}
	return nil
}

func (s *fakeStore) SetBookmarked(ctx context.Context, postID string, bookmarked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[postID]; ok {
		p.IsBookmarked = bookmarked
	}
	return nil
}

func (s *fakeStore) AdjustCounters(ctx context.Context, postID string, likeDelta, commentDelta, shareDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[postID]; ok {
		p.LikeCount = max(0, p.LikeCount+likeDelta)
		p.CommentCount = max(0, p.CommentCount+commentDelta)
		p.ShareCount = max(0, p.ShareCount+shareDelta)
	}
	return nil
}

func (s *fakeStore) interaction(id string) models.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interactions[id]
}

func (s *fakeStore) post(id string) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.posts[id]
}

type fakeLedger struct {
	mu      sync.Mutex
	credits []int64
}

func (l *fakeLedger) Record(ctx context.Context, tokenType string, amount int64, description, relatedEntityID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credits = append(l.credits, amount)
	return "txn", nil
}

func (l *fakeLedger) total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum int64
	for _, c := range l.credits {
		sum += c
	}
	return sum
}

// scriptedAdapter returns errs in sequence, then succeeds. When gate is set,
// remote calls block until it is closed.
type scriptedAdapter struct {
	platform    models.Platform
	unsupported map[platform.Action]bool
	gate        chan struct{}

	mu      sync.Mutex
	errs    []error
	calls   int
	actions []platform.Action
}

func (a *scriptedAdapter) Platform() models.Platform { return a.platform }

func (a *scriptedAdapter) Supports(action platform.Action) bool {
	return !a.unsupported[action]
}

func (a *scriptedAdapter) FetchPage(ctx context.Context, cursor string) (platform.FetchResult, error) {
	return platform.FetchResult{}, nil
}

func (a *scriptedAdapter) PerformAction(ctx context.Context, req platform.ActionRequest) (platform.ActionOutcome, error) {
	if a.gate != nil {
		<-a.gate
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.actions = append(a.actions, req.Action)
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return platform.ActionOutcome{}, err
		}
	}
	return platform.ActionOutcome{RemoteID: "remote_1"}, nil
}

func (a *scriptedAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *scriptedAdapter) actionLog() []platform.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]platform.Action(nil), a.actions...)
}

func testPost() *models.Post {
	return &models.Post{
		ID:         models.PostID(models.PlatformBluesky, "b1"),
		Platform:   models.PlatformBluesky,
		PlatformID: "b1",
		LikeCount:  10,
	}
}

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestSubmitLikeSyncs(t *testing.T) {
	store := newFakeStore(testPost())
	adapter := &scriptedAdapter{platform: models.PlatformBluesky}
	ledger := &fakeLedger{}
	q := NewQueue(store, platform.NewRegistry(adapter), ledger, fastConfig())

	in, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionLike, "")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Optimistic state is visible before the platform confirms.
	post := store.post("bluesky:b1")
	if !post.IsLiked {
		t.Error("expected post liked immediately after submit")
	}
	if post.LikeCount != 11 {
		t.Errorf("expected like count 11, got %d", post.LikeCount)
	}

	q.Wait()

	got := store.interaction(in.ID)
	if got.Status != models.InteractionSynced {
		t.Errorf("expected status synced, got %s", got.Status)
	}
	if ledger.total() != 1 {
		t.Errorf("expected 1 engagement token, got %d", ledger.total())
	}
}

func TestSubmitUnknownPost(t *testing.T) {
	q := NewQueue(newFakeStore(), platform.NewRegistry(), nil, fastConfig())
	if _, err := q.Submit(context.Background(), "bluesky:missing", models.InteractionLike, ""); !errors.Is(err, ErrUnknownPost) {
		t.Fatalf("expected ErrUnknownPost, got %v", err)
	}
}

func TestTransientFailureRetriesThenSyncs(t *testing.T) {
	store := newFakeStore(testPost())
	adapter := &scriptedAdapter{
		platform: models.PlatformBluesky,
		errs: []error{
			&platform.TransientError{Platform: models.PlatformBluesky, Err: errors.New("429")},
			&platform.TransientError{Platform: models.PlatformBluesky, Err: errors.New("429")},
		},
	}
	q := NewQueue(store, platform.NewRegistry(adapter), nil, fastConfig())

	in, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionLike, "")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	q.Wait()

	got := store.interaction(in.ID)
	if got.Status != models.InteractionSynced {
		t.Errorf("expected status synced after retries, got %s", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", got.Attempts)
	}
	if adapter.callCount() != 3 {
		t.Errorf("expected 3 platform calls, got %d", adapter.callCount())
	}
}

func TestTransientExhaustionParksPending(t *testing.T) {
	store := newFakeStore(testPost())
	transient := &platform.TransientError{Platform: models.PlatformBluesky, Err: errors.New("down")}
	adapter := &scriptedAdapter{
		platform: models.PlatformBluesky,
		errs:     []error{transient, transient, transient},
	}
	q := NewQueue(store, platform.NewRegistry(adapter), nil, fastConfig())

	in, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionLike, "")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	q.Wait()

	got := store.interaction(in.ID)
	if got.Status != models.InteractionPending {
		t.Errorf("expected status pending after exhaustion, got %s", got.Status)
	}
	// Optimistic state stays in place while the record is parked.
	if !store.post("bluesky:b1").IsLiked {
		t.Error("expected optimistic like to survive exhaustion")
	}

	// The next reconcile pass finds the platform healthy and syncs.
	if err := q.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	q.Wait()

	got = store.interaction(in.ID)
	if got.Status != models.InteractionSynced {
		t.Errorf("expected status synced after reconcile, got %s", got.Status)
	}
}

func TestReconcilePendingDispatchesOnce(t *testing.T) {
	other := &models.Post{
		ID:         models.PostID(models.PlatformBluesky, "b2"),
		Platform:   models.PlatformBluesky,
		PlatformID: "b2",
	}
	store := newFakeStore(testPost(), other)
	gate := make(chan struct{})
	adapter := &scriptedAdapter{platform: models.PlatformBluesky, gate: gate}
	q := NewQueue(store, platform.NewRegistry(adapter), nil, fastConfig())

	ctx := context.Background()
	now := time.Now().UTC()
	for i, in := range []*models.Interaction{
		{ID: "in_1", PostID: "bluesky:b1", Type: models.InteractionLike, Status: models.InteractionPending},
		{ID: "in_2", PostID: "bluesky:b2", Type: models.InteractionLike, Status: models.InteractionPending},
	} {
		in.CreatedAt = now.Add(time.Duration(i) * time.Second)
		in.UpdatedAt = in.CreatedAt
		if err := store.InsertInteraction(ctx, in); err != nil {
			t.Fatalf("InsertInteraction failed: %v", err)
		}
	}

	// Overlapping passes while both dispatches are held in flight must not
	// start a second dispatch for the same record.
	for i := 0; i < 3; i++ {
		if err := q.ReconcileAll(ctx); err != nil {
			t.Fatalf("ReconcileAll failed: %v", err)
		}
	}
	close(gate)
	q.Wait()

	if got := adapter.callCount(); got != 2 {
		t.Errorf("expected exactly 2 remote calls, got %d", got)
	}
	for _, id := range []string{"in_1", "in_2"} {
		if got := store.interaction(id).Status; got != models.InteractionSynced {
			t.Errorf("%s: expected status synced, got %s", id, got)
		}
	}
}

func TestSamePostDispatchOrder(t *testing.T) {
	store := newFakeStore(testPost())
	gate := make(chan struct{})
	adapter := &scriptedAdapter{platform: models.PlatformBluesky, gate: gate}
	q := NewQueue(store, platform.NewRegistry(adapter), nil, fastConfig())

	if _, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionLike, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionComment, "nice"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	close(gate)
	q.Wait()

	want := []platform.Action{platform.ActionLike, platform.ActionComment}
	got := adapter.actionLog()
	if len(got) != len(want) {
		t.Fatalf("expected %d remote calls, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPermanentFailureRollsBack(t *testing.T) {
	store := newFakeStore(testPost())
	adapter := &scriptedAdapter{
		platform: models.PlatformBluesky,
		errs: []error{&platform.PermanentError{
			Platform: models.PlatformBluesky, Err: errors.New("token revoked"),
		}},
	}
	q := NewQueue(store, platform.NewRegistry(adapter), nil, fastConfig())

	in, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionLike, "")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	q.Wait()

	got := store.interaction(in.ID)
	if got.Status != models.InteractionFailed {
		t.Errorf("expected status failed, got %s", got.Status)
	}
	post := store.post("bluesky:b1")
	if post.IsLiked {
		t.Error("expected like rolled back after permanent failure")
	}
	if post.LikeCount != 10 {
		t.Errorf("expected like count restored to 10, got %d", post.LikeCount)
	}
	if adapter.callCount() != 1 {
		t.Errorf("expected no retries on permanent failure, got %d calls", adapter.callCount())
	}
}

func TestUnsupportedActionFailsWithoutCall(t *testing.T) {
	store := newFakeStore(testPost())
	adapter := &scriptedAdapter{
		platform:    models.PlatformBluesky,
		unsupported: map[platform.Action]bool{platform.ActionSave: true},
	}
	q := NewQueue(store, platform.NewRegistry(adapter), nil, fastConfig())

	in, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionBookmark, "")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	q.Wait()

	got := store.interaction(in.ID)
	if got.Status != models.InteractionFailed {
		t.Errorf("expected status failed, got %s", got.Status)
	}
	if store.post("bluesky:b1").IsBookmarked {
		t.Error("expected bookmark rolled back")
	}
	if adapter.callCount() != 0 {
		t.Errorf("expected no platform call for unsupported action, got %d", adapter.callCount())
	}
}

func TestCommentCarriesContent(t *testing.T) {
	store := newFakeStore(testPost())
	adapter := &scriptedAdapter{platform: models.PlatformBluesky}
	ledger := &fakeLedger{}
	q := NewQueue(store, platform.NewRegistry(adapter), ledger, fastConfig())

	in, err := q.Submit(context.Background(), "bluesky:b1", models.InteractionComment, "nice post")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !in.Content.Valid || in.Content.String != "nice post" {
		t.Errorf("expected content persisted, got %+v", in.Content)
	}

	// Comment count bumps optimistically.
	if store.post("bluesky:b1").CommentCount != 1 {
		t.Errorf("expected comment count 1, got %d", store.post("bluesky:b1").CommentCount)
	}

	q.Wait()
	if ledger.total() != 2 {
		t.Errorf("expected 2 tokens for a comment, got %d", ledger.total())
	}
}
