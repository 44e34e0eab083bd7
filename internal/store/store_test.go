package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"socialhub/aggregator/internal/database"
	"socialhub/aggregator/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.NewDB(database.NewConfig(dbPath))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func testPost(p models.Platform, platformID string, publishedAt time.Time) *models.Post {
	return &models.Post{
		ID:                models.PostID(p, platformID),
		Platform:          p,
		PlatformID:        platformID,
		AuthorID:          "author_1",
		AuthorUsername:    "alice",
		AuthorDisplayName: "Alice",
		Content:           "hello",
		PublishedAt:       publishedAt,
		FetchedAt:         time.Now().UTC(),
		LikeCount:         5,
	}
}

func TestUpsertPostPreservesLocalFlags(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	publishedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	post := testPost(models.PlatformBluesky, "b1", publishedAt)
	post.Media = []models.Media{{
		ID:     post.ID + ":0",
		PostID: post.ID,
		Type:   models.MediaImage,
		URL:    "https://cdn.example/img.png",
	}}
	if err := s.UpsertPost(ctx, post); err != nil {
		t.Fatalf("UpsertPost failed: %v", err)
	}

	// Local optimistic flags are set by the interaction queue.
	if err := s.SetLiked(ctx, post.ID, true); err != nil {
		t.Fatalf("SetLiked failed: %v", err)
	}
	if err := s.SetBookmarked(ctx, post.ID, true); err != nil {
		t.Fatalf("SetBookmarked failed: %v", err)
	}

	// A re-fetch overwrites remote data but must not clobber local flags.
	refetched := testPost(models.PlatformBluesky, "b1", publishedAt)
	refetched.Content = "hello (edited)"
	refetched.LikeCount = 9
	if err := s.UpsertPost(ctx, refetched); err != nil {
		t.Fatalf("re-upsert failed: %v", err)
	}

	got, err := s.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected post, got nil")
	}
	if got.Content != "hello (edited)" || got.LikeCount != 9 {
		t.Errorf("remote fields not updated: %+v", got)
	}
	if !got.IsLiked || !got.IsBookmarked {
		t.Errorf("local flags clobbered by upsert: liked=%v bookmarked=%v", got.IsLiked, got.IsBookmarked)
	}
	// Media was replaced wholesale; the refetched post had none.
	if len(got.Media) != 0 {
		t.Errorf("expected media replaced, got %d attachments", len(got.Media))
	}
}

func TestQueryPostsOrderingAndFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	posts := []*models.Post{
		testPost(models.PlatformBluesky, "b1", base.Add(-10*time.Minute)),
		testPost(models.PlatformMastodon, "m1", base.Add(-5*time.Minute)),
		testPost(models.PlatformMastodon, "m2", base.Add(-10*time.Minute)), // ties with b1
	}
	for _, p := range posts {
		if err := s.UpsertPost(ctx, p); err != nil {
			t.Fatalf("UpsertPost failed: %v", err)
		}
	}
	if err := s.SetBookmarked(ctx, "mastodon:m1", true); err != nil {
		t.Fatalf("SetBookmarked failed: %v", err)
	}

	all, err := s.QueryPosts(ctx, PostQuery{})
	if err != nil {
		t.Fatalf("QueryPosts failed: %v", err)
	}
	want := []string{"mastodon:m1", "bluesky:b1", "mastodon:m2"}
	if len(all) != len(want) {
		t.Fatalf("expected %d posts, got %d", len(want), len(all))
	}
	for i := range want {
		if all[i].ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], all[i].ID)
		}
	}

	onlyMasto, err := s.QueryPosts(ctx, PostQuery{Platforms: []models.Platform{models.PlatformMastodon}})
	if err != nil {
		t.Fatalf("QueryPosts failed: %v", err)
	}
	if len(onlyMasto) != 2 {
		t.Errorf("expected 2 mastodon posts, got %d", len(onlyMasto))
	}

	bookmarked, err := s.QueryPosts(ctx, PostQuery{BookmarkedOnly: true})
	if err != nil {
		t.Fatalf("QueryPosts failed: %v", err)
	}
	if len(bookmarked) != 1 || bookmarked[0].ID != "mastodon:m1" {
		t.Errorf("unexpected bookmark listing: %+v", bookmarked)
	}
}

func TestAdjustCountersClampsAtZero(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	post := testPost(models.PlatformBluesky, "b1", time.Now().UTC())
	post.LikeCount = 0
	if err := s.UpsertPost(ctx, post); err != nil {
		t.Fatalf("UpsertPost failed: %v", err)
	}
	if err := s.AdjustCounters(ctx, post.ID, -3, 0, 0); err != nil {
		t.Fatalf("AdjustCounters failed: %v", err)
	}
	got, err := s.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.LikeCount != 0 {
		t.Errorf("expected like count clamped to 0, got %d", got.LikeCount)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.GetCursor(ctx, models.PlatformBluesky)
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil cursor for unknown platform, got %+v", got)
	}

	syncTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveCursor(ctx, models.PlatformBluesky, "tok1", syncTime); err != nil {
		t.Fatalf("SaveCursor failed: %v", err)
	}
	if err := s.SaveCursor(ctx, models.PlatformBluesky, "tok2", syncTime.Add(time.Minute)); err != nil {
		t.Fatalf("SaveCursor upsert failed: %v", err)
	}

	got, err = s.GetCursor(ctx, models.PlatformBluesky)
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if got == nil || !got.Cursor.Valid || got.Cursor.String != "tok2" {
		t.Fatalf("expected cursor tok2, got %+v", got)
	}

	if err := s.ResetCursor(ctx, models.PlatformBluesky); err != nil {
		t.Fatalf("ResetCursor failed: %v", err)
	}
	got, err = s.GetCursor(ctx, models.PlatformBluesky)
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected cursor cleared, got %+v", got)
	}
}

func TestAccountDeactivation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	account := models.NewConnectedAccount("acct_1", models.PlatformBluesky, "alice", "Alice")
	if err := s.UpsertAccount(ctx, account); err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}

	active, err := s.ActiveAccounts(ctx)
	if err != nil {
		t.Fatalf("ActiveAccounts failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active account, got %d", len(active))
	}

	if err := s.DeactivateAccount(ctx, "acct_1"); err != nil {
		t.Fatalf("DeactivateAccount failed: %v", err)
	}

	active, err = s.ActiveAccounts(ctx)
	if err != nil {
		t.Fatalf("ActiveAccounts failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected 0 active accounts after deactivation, got %d", len(active))
	}

	// The row survives deactivation for history.
	byPlatform, err := s.ActiveAccountForPlatform(ctx, models.PlatformBluesky)
	if err != nil {
		t.Fatalf("ActiveAccountForPlatform failed: %v", err)
	}
	if byPlatform != nil {
		t.Errorf("expected no active bluesky account, got %+v", byPlatform)
	}
}

func TestInteractionListingOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"in_b", "in_a", "in_c"} {
		in := &models.Interaction{
			ID:        id,
			PostID:    "bluesky:b1",
			Type:      models.InteractionLike,
			Status:    models.InteractionPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.InsertInteraction(ctx, in); err != nil {
			t.Fatalf("InsertInteraction failed: %v", err)
		}
	}
	if err := s.UpdateInteractionStatus(ctx, "in_a", models.InteractionSynced, 1, ""); err != nil {
		t.Fatalf("UpdateInteractionStatus failed: %v", err)
	}

	pending, err := s.InteractionsByStatus(ctx, models.InteractionPending)
	if err != nil {
		t.Fatalf("InteractionsByStatus failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "in_b" || pending[1].ID != "in_c" {
		t.Errorf("unexpected pending order: %+v", pending)
	}

	synced, err := s.InteractionsByStatus(ctx, models.InteractionSynced)
	if err != nil {
		t.Fatalf("InteractionsByStatus failed: %v", err)
	}
	if len(synced) != 1 || synced[0].Attempts != 1 {
		t.Errorf("unexpected synced listing: %+v", synced)
	}

	got, err := s.GetInteraction(ctx, "in_a")
	if err != nil {
		t.Fatalf("GetInteraction failed: %v", err)
	}
	if got == nil || got.Status != models.InteractionSynced {
		t.Errorf("unexpected interaction: %+v", got)
	}
	missing, err := s.GetInteraction(ctx, "in_nope")
	if err != nil {
		t.Fatalf("GetInteraction failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown id, got %+v", missing)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	draft := &models.Draft{
		ID:              "d_1",
		Content:         "draft body",
		TargetPlatforms: `["bluesky"]`,
		Status:          models.DraftStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	media := []models.DraftMedia{{
		ID:        "dm_1",
		DraftID:   "d_1",
		Type:      models.MediaImage,
		LocalPath: "/tmp/img.png",
	}}
	if err := s.SaveDraft(ctx, draft, media); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	got, gotMedia, err := s.GetDraft(ctx, "d_1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if got == nil || got.Content != "draft body" {
		t.Fatalf("unexpected draft: %+v", got)
	}
	if len(gotMedia) != 1 || gotMedia[0].LocalPath != "/tmp/img.png" {
		t.Errorf("unexpected draft media: %+v", gotMedia)
	}

	if err := s.UpdateDraftStatus(ctx, "d_1", models.DraftStatusPublished, ""); err != nil {
		t.Fatalf("UpdateDraftStatus failed: %v", err)
	}
	listed, err := s.ListDrafts(ctx)
	if err != nil {
		t.Fatalf("ListDrafts failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != models.DraftStatusPublished {
		t.Errorf("unexpected draft listing: %+v", listed)
	}

	if err := s.DeleteDraft(ctx, "d_1"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}
	got, _, err = s.GetDraft(ctx, "d_1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected draft deleted, got %+v", got)
	}
}

func TestPurgeOldPostsKeepsBookmarks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := testPost(models.PlatformBluesky, "old", time.Now().UTC().AddDate(0, 0, -60))
	old.FetchedAt = time.Now().UTC().AddDate(0, 0, -60)
	keeper := testPost(models.PlatformBluesky, "keeper", time.Now().UTC().AddDate(0, 0, -60))
	keeper.FetchedAt = old.FetchedAt
	fresh := testPost(models.PlatformBluesky, "fresh", time.Now().UTC())

	for _, p := range []*models.Post{old, keeper, fresh} {
		if err := s.UpsertPost(ctx, p); err != nil {
			t.Fatalf("UpsertPost failed: %v", err)
		}
	}
	if err := s.SetBookmarked(ctx, keeper.ID, true); err != nil {
		t.Fatalf("SetBookmarked failed: %v", err)
	}

	purged, err := s.PurgeOldPosts(ctx, 30)
	if err != nil {
		t.Fatalf("PurgeOldPosts failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged post, got %d", purged)
	}

	remaining, err := s.QueryPosts(ctx, PostQuery{})
	if err != nil {
		t.Fatalf("QueryPosts failed: %v", err)
	}
	ids := make(map[string]bool)
	for _, p := range remaining {
		ids[p.ID] = true
	}
	if ids[old.ID] {
		t.Error("expected old post purged")
	}
	if !ids[keeper.ID] || !ids[fresh.ID] {
		t.Errorf("expected bookmarked and fresh posts kept, got %v", ids)
	}
}

func TestProfileAndSettings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	got, err := s.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil profile on fresh db, got %+v", got)
	}

	profile := &models.UserProfile{
		ID:          models.LocalUserID,
		DisplayName: "Alice",
		Username:    "alice",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	profile.DisplayName = "Alice B."
	if err := s.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile upsert failed: %v", err)
	}

	got, err = s.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got == nil || got.DisplayName != "Alice B." {
		t.Errorf("unexpected profile: %+v", got)
	}

	if err := s.SaveSetting(ctx, &models.AppSetting{Key: "theme", Value: "dark", UpdatedAt: now}); err != nil {
		t.Fatalf("SaveSetting failed: %v", err)
	}
	val, err := s.GetSetting(ctx, "theme")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "dark" {
		t.Errorf("expected theme dark, got %q", val)
	}
}
