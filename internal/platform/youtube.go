package platform

import (
	"context"
	"net/url"
	"time"

	"socialhub/aggregator/internal/models"
)

// YouTubeAdapter talks to the YouTube Data API. YouTube offers no like or
// share action through this surface and no publish either; only commenting
// and saving to the watch-later playlist.
type YouTubeAdapter struct {
	rc *restClient
}

const youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

var youtubeCapabilities = map[Action]bool{
	ActionComment: true,
	ActionSave:    true,
}

func NewYouTubeAdapter(cfg RESTConfig, httpClient HTTPClient) *YouTubeAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = youtubeBaseURL
	}
	return &YouTubeAdapter{rc: newRESTClient(models.PlatformYouTube, cfg, httpClient)}
}

func (a *YouTubeAdapter) Platform() models.Platform { return models.PlatformYouTube }

func (a *YouTubeAdapter) Supports(action Action) bool { return youtubeCapabilities[action] }

type ytActivityPage struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			PublishedAt  string `json:"publishedAt"`
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				High struct {
					URL    string `json:"url"`
					Width  int64  `json:"width"`
					Height int64  `json:"height"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Upload struct {
				VideoID string `json:"videoId"`
			} `json:"upload"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

func (a *YouTubeAdapter) FetchPage(ctx context.Context, cursor string) (FetchResult, error) {
	query := url.Values{}
	query.Set("part", "snippet,contentDetails")
	query.Set("home", "true")
	query.Set("maxResults", "20")
	if cursor != "" {
		query.Set("pageToken", cursor)
	}

	var page ytActivityPage
	if err := a.rc.getJSON(ctx, "/activities", query, &page); err != nil {
		return FetchResult{}, err
	}

	items := make([]models.Post, 0, len(page.Items))
	now := time.Now().UTC()
	for _, item := range page.Items {
		videoID := item.ContentDetails.Upload.VideoID
		if videoID == "" {
			videoID = item.ID
		}
		publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			continue
		}
		post := models.Post{
			ID:                models.PostID(models.PlatformYouTube, videoID),
			Platform:          models.PlatformYouTube,
			PlatformID:        videoID,
			AuthorID:          item.Snippet.ChannelID,
			AuthorUsername:    item.Snippet.ChannelTitle,
			AuthorDisplayName: item.Snippet.ChannelTitle,
			Content:           item.Snippet.Title,
			PublishedAt:       publishedAt.UTC(),
			FetchedAt:         now,
		}
		post.Media = []models.Media{{
			ID:         post.ID + ":0",
			PostID:     post.ID,
			Type:       models.MediaVideo,
			URL:        "https://www.youtube.com/watch?v=" + videoID,
			PreviewURL: nullString(item.Snippet.Thumbnails.High.URL),
			Width:      nullInt(item.Snippet.Thumbnails.High.Width),
			Height:     nullInt(item.Snippet.Thumbnails.High.Height),
		}}
		items = append(items, post)
	}

	return FetchResult{Items: items, NextCursor: page.NextPageToken}, nil
}

func (a *YouTubeAdapter) PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error) {
	if !a.Supports(req.Action) {
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformYouTube, Action: req.Action}
	}

	var out struct {
		ID string `json:"id"`
	}
	switch req.Action {
	case ActionComment:
		body := map[string]any{
			"snippet": map[string]any{
				"videoId": req.TargetID,
				"topLevelComment": map[string]any{
					"snippet": map[string]string{"textOriginal": req.Content},
				},
			},
		}
		err := a.rc.postJSON(ctx, "/commentThreads?part=snippet", body, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	case ActionSave:
		body := map[string]any{
			"snippet": map[string]any{
				"playlistId": "WL",
				"resourceId": map[string]string{"kind": "youtube#video", "videoId": req.TargetID},
			},
		}
		err := a.rc.postJSON(ctx, "/playlistItems?part=snippet", body, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	default:
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformYouTube, Action: req.Action}
	}
}
