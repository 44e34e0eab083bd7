package platform

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"socialhub/aggregator/internal/models"
)

// DemoAdapter is an offline platform that fabricates plausible content.
// It supports every action, never fails, and is used by the seed command and
// for local development without any platform credentials.
type DemoAdapter struct {
	faker    *gofakeit.Faker
	pageSize int
	now      func() time.Time
}

// NewDemoAdapter creates a demo adapter. The seed makes generated content
// reproducible across runs; now may be nil.
func NewDemoAdapter(seed int64, pageSize int, now func() time.Time) *DemoAdapter {
	if pageSize <= 0 {
		pageSize = 10
	}
	if now == nil {
		now = time.Now
	}
	return &DemoAdapter{
		faker:    gofakeit.New(seed),
		pageSize: pageSize,
		now:      now,
	}
}

func (a *DemoAdapter) Platform() models.Platform { return models.PlatformDemo }

func (a *DemoAdapter) Supports(Action) bool { return true }

// FetchPage generates one page of posts. The cursor is the offset of the next
// page, so successive calls produce distinct ids and strictly older posts.
func (a *DemoAdapter) FetchPage(ctx context.Context, cursor string) (FetchResult, error) {
	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return FetchResult{}, &PermanentError{Platform: models.PlatformDemo, Err: fmt.Errorf("invalid cursor %q: %w", cursor, err)}
		}
		offset = parsed
	}

	now := a.now().UTC()
	items := make([]models.Post, 0, a.pageSize)
	for i := 0; i < a.pageSize; i++ {
		seq := offset + i
		platformID := fmt.Sprintf("demo_%06d", seq)
		username := a.faker.Username()
		post := models.Post{
			ID:                models.PostID(models.PlatformDemo, platformID),
			Platform:          models.PlatformDemo,
			PlatformID:        platformID,
			AuthorID:          a.faker.UUID(),
			AuthorUsername:    username,
			AuthorDisplayName: a.faker.Name(),
			AuthorAvatarURL:   nullString(a.faker.ImageURL(128, 128)),
			AuthorVerified:    seq%3 == 0,
			Content:           a.faker.Sentence(12),
			PublishedAt:       now.Add(-time.Duration(seq+1) * 10 * time.Minute),
			FetchedAt:         now,
			LikeCount:         a.faker.Number(0, 5000),
			CommentCount:      a.faker.Number(0, 500),
			ShareCount:        a.faker.Number(0, 200),
		}
		if seq%2 == 0 {
			post.Media = []models.Media{{
				ID:         post.ID + ":0",
				PostID:     post.ID,
				Type:       models.MediaImage,
				URL:        a.faker.ImageURL(1080, 1350),
				PreviewURL: nullString(a.faker.ImageURL(320, 400)),
				Width:      nullInt(1080),
				Height:     nullInt(1350),
			}}
		}
		items = append(items, post)
	}

	return FetchResult{Items: items, NextCursor: strconv.Itoa(offset + a.pageSize)}, nil
}

func (a *DemoAdapter) PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error) {
	return ActionOutcome{RemoteID: uuid.NewString()}, nil
}
