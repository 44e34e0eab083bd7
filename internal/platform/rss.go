package platform

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/reddot-watch/feedfetcher"
	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/models"
)

// RSSAdapter exposes a set of RSS/Atom feeds as a read-only platform. It has
// no actions at all; interactions against RSS items fail with a capability
// error and the feed engine treats it like any other source.
type RSSAdapter struct {
	fetcher  *feedfetcher.FeedFetcher
	feedURLs []string
}

const rssCursorFormat = time.RFC3339Nano

func NewRSSAdapter(feedURLs []string) *RSSAdapter {
	fetcher := feedfetcher.NewFeedFetcher(feedfetcher.Config{
		UserAgent:            defaultUserAgent,
		RequestTimeout:       15 * time.Second,
		MaxItems:             100,
		MaxHeadingLength:     200,
		MaxAge:               48 * time.Hour,
		FutureDriftTolerance: 12 * time.Hour,
	})
	return &RSSAdapter{fetcher: fetcher, feedURLs: feedURLs}
}

func (a *RSSAdapter) Platform() models.Platform { return models.PlatformRSS }

func (a *RSSAdapter) Supports(Action) bool { return false }

// FetchPage pulls every configured feed and returns items newer than the
// cursor, which encodes the latest publish time already delivered. RSS has no
// server-side pagination, so the watermark is the whole cursor state.
func (a *RSSAdapter) FetchPage(ctx context.Context, cursor string) (FetchResult, error) {
	var since time.Time
	if cursor != "" {
		parsed, err := time.Parse(rssCursorFormat, cursor)
		if err != nil {
			return FetchResult{}, &PermanentError{Platform: models.PlatformRSS, Err: fmt.Errorf("invalid cursor %q: %w", cursor, err)}
		}
		since = parsed
	}

	var items []models.Post
	now := time.Now().UTC()
	latest := since
	var lastErr error
	failed := 0

	for _, feedURL := range a.feedURLs {
		fetched, err := a.fetcher.FetchAndProcess(ctx, feedURL)
		if err != nil {
			log.Warn().Err(err).Str("feed_url", feedURL).Msg("RSS feed fetch failed")
			lastErr = err
			failed++
			continue
		}
		host := feedHost(feedURL)
		for _, item := range fetched {
			if item.URL == "" || !item.PublishedAt.After(since) {
				continue
			}
			if item.PublishedAt.After(latest) {
				latest = item.PublishedAt
			}
			post := models.Post{
				ID:                models.PostID(models.PlatformRSS, item.URL),
				Platform:          models.PlatformRSS,
				PlatformID:        item.URL,
				AuthorID:          host,
				AuthorUsername:    host,
				AuthorDisplayName: host,
				Content:           item.Headline,
				PublishedAt:       item.PublishedAt.UTC(),
				FetchedAt:         now,
			}
			items = append(items, post)
		}
	}

	if failed == len(a.feedURLs) && failed > 0 {
		return FetchResult{}, &TransientError{Platform: models.PlatformRSS, Err: lastErr}
	}

	next := cursor
	if latest.After(since) {
		next = latest.UTC().Format(rssCursorFormat)
	}
	return FetchResult{Items: items, NextCursor: next}, nil
}

func (a *RSSAdapter) PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error) {
	return ActionOutcome{}, &CapabilityError{Platform: models.PlatformRSS, Action: req.Action}
}

func feedHost(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Host
}
