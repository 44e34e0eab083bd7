// Package seed bootstraps a fresh database with a local profile, a linked
// demo account, and a cache of generated posts, so the API is usable without
// real platform credentials.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/feed"
	"socialhub/aggregator/internal/models"
)

// Store is the slice of the cache store the seeder writes.
type Store interface {
	SaveProfile(ctx context.Context, p *models.UserProfile) error
	UpsertAccount(ctx context.Context, account *models.ConnectedAccount) error
	SaveSetting(ctx context.Context, setting *models.AppSetting) error
}

// Seeder fills a fresh database through the same pipeline real syncs use.
type Seeder struct {
	store  Store
	engine *feed.Engine
	faker  *gofakeit.Faker
}

// New creates a seeder. The same seed value produces the same data.
func New(store Store, engine *feed.Engine, seedValue int64) *Seeder {
	return &Seeder{
		store:  store,
		engine: engine,
		faker:  gofakeit.New(seedValue),
	}
}

// Run creates the singleton profile, links the demo account, and pages the
// demo platform through the merge engine until postCount posts are cached.
func (s *Seeder) Run(ctx context.Context, postCount, pageSize int) error {
	if postCount <= 0 {
		postCount = 100
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	now := time.Now().UTC()
	username := strings.ToLower(s.faker.Username())
	profile := &models.UserProfile{
		ID:          models.LocalUserID,
		DisplayName: s.faker.Name(),
		Username:    username,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	profile.Bio.String = s.faker.Sentence(8)
	profile.Bio.Valid = true
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	account := models.NewConnectedAccount("demo_account", models.PlatformDemo, username, profile.DisplayName)
	if err := s.store.UpsertAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to link demo account: %w", err)
	}

	if err := s.store.SaveSetting(ctx, &models.AppSetting{
		Key:       "seeded_at",
		Value:     now.Format(time.RFC3339),
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to record seed marker: %w", err)
	}

	// Paging through the engine exercises the same fetch, merge, and cache
	// path a real sync uses, so seeded data is indistinguishable from synced
	// data.
	cached := 0
	for cached < postCount {
		page, err := s.engine.FetchNextPage(ctx, feed.Scope(models.PlatformDemo), pageSize)
		if err != nil {
			return fmt.Errorf("failed to generate posts: %w", err)
		}
		if len(page.Items) == 0 {
			break
		}
		cached += len(page.Items)
	}

	log.Info().
		Str("username", username).
		Int("posts", cached).
		Msg("Database seeded")
	return nil
}
