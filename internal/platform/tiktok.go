package platform

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"socialhub/aggregator/internal/models"
)

// TikTokAdapter talks to the TikTok open API.
type TikTokAdapter struct {
	rc *restClient
}

const tiktokBaseURL = "https://open.tiktokapis.com/v2"

var tiktokCapabilities = map[Action]bool{
	ActionLike:    true,
	ActionComment: true,
	ActionSave:    true,
	ActionPublish: true,
}

func NewTikTokAdapter(cfg RESTConfig, httpClient HTTPClient) *TikTokAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = tiktokBaseURL
	}
	return &TikTokAdapter{rc: newRESTClient(models.PlatformTikTok, cfg, httpClient)}
}

func (a *TikTokAdapter) Platform() models.Platform { return models.PlatformTikTok }

func (a *TikTokAdapter) Supports(action Action) bool { return tiktokCapabilities[action] }

type tiktokVideoList struct {
	Data struct {
		Videos []struct {
			ID            string `json:"id"`
			Title         string `json:"title"`
			CreateTime    int64  `json:"create_time"` // unix seconds
			CoverImageURL string `json:"cover_image_url"`
			EmbedLink     string `json:"embed_link"`
			Duration      int64  `json:"duration"` // seconds
			Width         int64  `json:"width"`
			Height        int64  `json:"height"`
			LikeCount     int    `json:"like_count"`
			CommentCount  int    `json:"comment_count"`
			ShareCount    int    `json:"share_count"`
		} `json:"videos"`
		Cursor  int64 `json:"cursor"`
		HasMore bool  `json:"has_more"`
	} `json:"data"`
}

func (a *TikTokAdapter) FetchPage(ctx context.Context, cursor string) (FetchResult, error) {
	body := map[string]any{"max_count": 20}
	if cursor != "" {
		if c, err := strconv.ParseInt(cursor, 10, 64); err == nil {
			body["cursor"] = c
		}
	}

	var page tiktokVideoList
	if err := a.rc.postJSON(ctx, "/video/list/", body, &page); err != nil {
		return FetchResult{}, err
	}

	items := make([]models.Post, 0, len(page.Data.Videos))
	now := time.Now().UTC()
	for _, v := range page.Data.Videos {
		post := models.Post{
			ID:                models.PostID(models.PlatformTikTok, v.ID),
			Platform:          models.PlatformTikTok,
			PlatformID:        v.ID,
			AuthorID:          "me",
			AuthorUsername:    "me",
			AuthorDisplayName: "me",
			Content:           v.Title,
			PublishedAt:       time.Unix(v.CreateTime, 0).UTC(),
			FetchedAt:         now,
			LikeCount:         v.LikeCount,
			CommentCount:      v.CommentCount,
			ShareCount:        v.ShareCount,
		}
		if v.EmbedLink != "" {
			post.Media = []models.Media{{
				ID:         post.ID + ":0",
				PostID:     post.ID,
				Type:       models.MediaVideo,
				URL:        v.EmbedLink,
				PreviewURL: nullString(v.CoverImageURL),
				Width:      nullInt(v.Width),
				Height:     nullInt(v.Height),
				Duration:   nullInt(v.Duration * 1000),
			}}
		}
		items = append(items, post)
	}

	next := ""
	if page.Data.HasMore {
		next = strconv.FormatInt(page.Data.Cursor, 10)
	}
	return FetchResult{Items: items, NextCursor: next}, nil
}

func (a *TikTokAdapter) PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error) {
	if !a.Supports(req.Action) {
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformTikTok, Action: req.Action}
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	switch req.Action {
	case ActionLike:
		err := a.rc.postJSON(ctx, "/video/like/", map[string]string{"video_id": req.TargetID}, nil)
		return ActionOutcome{}, err
	case ActionComment:
		err := a.rc.postJSON(ctx, "/video/comment/", map[string]string{"video_id": req.TargetID, "text": req.Content}, &out)
		return ActionOutcome{RemoteID: out.Data.ID}, err
	case ActionSave:
		err := a.rc.postJSON(ctx, "/video/favorite/", map[string]string{"video_id": req.TargetID}, nil)
		return ActionOutcome{}, err
	case ActionPublish:
		body := map[string]any{"post_info": map[string]string{"title": req.Content}}
		if len(req.MediaPaths) > 0 {
			body["source_info"] = map[string]string{"video_url": req.MediaPaths[0]}
		}
		err := a.rc.postJSON(ctx, "/post/publish/video/init/", body, &out)
		return ActionOutcome{RemoteID: out.Data.ID}, err
	default:
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformTikTok, Action: req.Action}
	}
}

func nullInt(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
