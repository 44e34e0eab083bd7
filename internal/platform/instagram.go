package platform

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"socialhub/aggregator/internal/models"
)

// InstagramAdapter talks to the Instagram Graph API.
type InstagramAdapter struct {
	rc *restClient
}

const instagramBaseURL = "https://graph.instagram.com/v18.0"

var instagramCapabilities = map[Action]bool{
	ActionLike:    true,
	ActionComment: true,
	ActionSave:    true,
	ActionPublish: true,
}

// NewInstagramAdapter creates the Instagram adapter. Pass a nil httpClient to
// use the default transport.
func NewInstagramAdapter(cfg RESTConfig, httpClient HTTPClient) *InstagramAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = instagramBaseURL
	}
	return &InstagramAdapter{rc: newRESTClient(models.PlatformInstagram, cfg, httpClient)}
}

func (a *InstagramAdapter) Platform() models.Platform { return models.PlatformInstagram }

func (a *InstagramAdapter) Supports(action Action) bool { return instagramCapabilities[action] }

type igMediaPage struct {
	Data   []igMedia `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

type igMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"` // IMAGE, VIDEO, CAROUSEL_ALBUM
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Timestamp     string `json:"timestamp"`
	Username      string `json:"username"`
	OwnerID       string `json:"owner_id"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
}

func (a *InstagramAdapter) FetchPage(ctx context.Context, cursor string) (FetchResult, error) {
	query := url.Values{}
	query.Set("fields", "id,caption,media_type,media_url,thumbnail_url,timestamp,username,owner_id,like_count,comments_count")
	if cursor != "" {
		query.Set("after", cursor)
	}

	var page igMediaPage
	if err := a.rc.getJSON(ctx, "/me/media", query, &page); err != nil {
		return FetchResult{}, err
	}

	items := make([]models.Post, 0, len(page.Data))
	now := time.Now().UTC()
	for _, m := range page.Data {
		publishedAt, err := parseInstagramTime(m.Timestamp)
		if err != nil {
			continue
		}
		post := models.Post{
			ID:                models.PostID(models.PlatformInstagram, m.ID),
			Platform:          models.PlatformInstagram,
			PlatformID:        m.ID,
			AuthorID:          m.OwnerID,
			AuthorUsername:    m.Username,
			AuthorDisplayName: m.Username,
			Content:           m.Caption,
			PublishedAt:       publishedAt,
			FetchedAt:         now,
			LikeCount:         m.LikeCount,
			CommentCount:      m.CommentsCount,
		}
		if m.MediaURL != "" {
			mediaType := models.MediaImage
			if m.MediaType == "VIDEO" {
				mediaType = models.MediaVideo
			}
			post.Media = []models.Media{{
				ID:         post.ID + ":0",
				PostID:     post.ID,
				Type:       mediaType,
				URL:        m.MediaURL,
				PreviewURL: nullString(m.ThumbnailURL),
			}}
		}
		items = append(items, post)
	}

	return FetchResult{Items: items, NextCursor: page.Paging.Cursors.After}, nil
}

func (a *InstagramAdapter) PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error) {
	if !a.Supports(req.Action) {
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformInstagram, Action: req.Action}
	}

	var out struct {
		ID string `json:"id"`
	}
	switch req.Action {
	case ActionLike:
		err := a.rc.postJSON(ctx, "/"+req.TargetID+"/likes", nil, nil)
		return ActionOutcome{}, err
	case ActionComment:
		err := a.rc.postJSON(ctx, "/"+req.TargetID+"/comments", map[string]string{"message": req.Content}, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	case ActionSave:
		err := a.rc.postJSON(ctx, "/"+req.TargetID+"/save", nil, nil)
		return ActionOutcome{}, err
	case ActionPublish:
		body := map[string]any{"caption": req.Content}
		if len(req.MediaPaths) > 0 {
			body["media_url"] = req.MediaPaths[0]
		}
		err := a.rc.postJSON(ctx, "/me/media_publish", body, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	default:
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformInstagram, Action: req.Action}
	}
}

// Instagram timestamps come back without a colon in the zone offset.
func parseInstagramTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05-0700", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
