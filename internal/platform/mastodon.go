package platform

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"socialhub/aggregator/internal/models"
)

// MastodonAdapter talks to a Mastodon-compatible instance API. The base URL
// carries the instance, so one adapter instance serves one home server.
type MastodonAdapter struct {
	rc *restClient
}

var mastodonCapabilities = map[Action]bool{
	ActionLike:    true,
	ActionComment: true,
	ActionShare:   true,
	ActionPublish: true,
}

func NewMastodonAdapter(cfg RESTConfig, httpClient HTTPClient) *MastodonAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://mastodon.social/api/v1"
	}
	return &MastodonAdapter{rc: newRESTClient(models.PlatformMastodon, cfg, httpClient)}
}

func (a *MastodonAdapter) Platform() models.Platform { return models.PlatformMastodon }

func (a *MastodonAdapter) Supports(action Action) bool { return mastodonCapabilities[action] }

type mastoStatus struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Content   string `json:"content"`
	Account   struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Avatar      string `json:"avatar"`
	} `json:"account"`
	MediaAttachments []struct {
		ID          string `json:"id"`
		Type        string `json:"type"` // image, video, gifv, audio
		URL         string `json:"url"`
		PreviewURL  string `json:"preview_url"`
		Description string `json:"description"`
	} `json:"media_attachments"`
	RepliesCount    int  `json:"replies_count"`
	ReblogsCount    int  `json:"reblogs_count"`
	FavouritesCount int  `json:"favourites_count"`
	Favourited      bool `json:"favourited"`
	Bookmarked      bool `json:"bookmarked"`
}

func (a *MastodonAdapter) FetchPage(ctx context.Context, cursor string) (FetchResult, error) {
	query := url.Values{}
	query.Set("limit", "20")
	if cursor != "" {
		// Mastodon paginates backwards through ids.
		query.Set("max_id", cursor)
	}

	var statuses []mastoStatus
	if err := a.rc.getJSON(ctx, "/timelines/home", query, &statuses); err != nil {
		return FetchResult{}, err
	}

	items := make([]models.Post, 0, len(statuses))
	now := time.Now().UTC()
	for _, s := range statuses {
		publishedAt, err := time.Parse(time.RFC3339, s.CreatedAt)
		if err != nil {
			continue
		}
		displayName := s.Account.DisplayName
		if displayName == "" {
			displayName = s.Account.Username
		}
		post := models.Post{
			ID:                models.PostID(models.PlatformMastodon, s.ID),
			Platform:          models.PlatformMastodon,
			PlatformID:        s.ID,
			AuthorID:          s.Account.ID,
			AuthorUsername:    s.Account.Username,
			AuthorDisplayName: displayName,
			AuthorAvatarURL:   nullString(s.Account.Avatar),
			Content:           s.Content,
			PublishedAt:       publishedAt.UTC(),
			FetchedAt:         now,
			LikeCount:         s.FavouritesCount,
			CommentCount:      s.RepliesCount,
			ShareCount:        s.ReblogsCount,
			IsLiked:           s.Favourited,
			IsBookmarked:      s.Bookmarked,
		}
		for i, m := range s.MediaAttachments {
			post.Media = append(post.Media, models.Media{
				ID:         post.ID + ":" + strconv.Itoa(i),
				PostID:     post.ID,
				Type:       mastoMediaType(m.Type),
				URL:        m.URL,
				PreviewURL: nullString(m.PreviewURL),
				AltText:    nullString(m.Description),
			})
		}
		items = append(items, post)
	}

	next := ""
	if len(statuses) > 0 {
		next = statuses[len(statuses)-1].ID
	}
	return FetchResult{Items: items, NextCursor: next}, nil
}

func (a *MastodonAdapter) PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error) {
	if !a.Supports(req.Action) {
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformMastodon, Action: req.Action}
	}

	var out struct {
		ID string `json:"id"`
	}
	switch req.Action {
	case ActionLike:
		err := a.rc.postJSON(ctx, "/statuses/"+req.TargetID+"/favourite", nil, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	case ActionShare:
		err := a.rc.postJSON(ctx, "/statuses/"+req.TargetID+"/reblog", nil, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	case ActionComment:
		body := map[string]string{"status": req.Content, "in_reply_to_id": req.TargetID}
		err := a.rc.postJSON(ctx, "/statuses", body, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	case ActionPublish:
		err := a.rc.postJSON(ctx, "/statuses", map[string]string{"status": req.Content}, &out)
		return ActionOutcome{RemoteID: out.ID}, err
	default:
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformMastodon, Action: req.Action}
	}
}

func mastoMediaType(t string) models.MediaType {
	switch t {
	case "video":
		return models.MediaVideo
	case "gifv":
		return models.MediaGIF
	case "audio":
		return models.MediaAudio
	default:
		return models.MediaImage
	}
}
