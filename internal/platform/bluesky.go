package platform

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"socialhub/aggregator/internal/models"
)

// BlueskyAdapter talks to an AT Protocol PDS over XRPC.
type BlueskyAdapter struct {
	rc  *restClient
	did string // repo to write records into
}

const blueskyBaseURL = "https://bsky.social/xrpc"

var blueskyCapabilities = map[Action]bool{
	ActionLike:    true,
	ActionComment: true,
	ActionShare:   true,
	ActionPublish: true,
}

func NewBlueskyAdapter(cfg RESTConfig, did string, httpClient HTTPClient) *BlueskyAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = blueskyBaseURL
	}
	return &BlueskyAdapter{rc: newRESTClient(models.PlatformBluesky, cfg, httpClient), did: did}
}

func (a *BlueskyAdapter) Platform() models.Platform { return models.PlatformBluesky }

func (a *BlueskyAdapter) Supports(action Action) bool { return blueskyCapabilities[action] }

type bskyTimeline struct {
	Feed []struct {
		Post struct {
			URI    string `json:"uri"`
			CID    string `json:"cid"`
			Author struct {
				DID         string `json:"did"`
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
				Avatar      string `json:"avatar"`
			} `json:"author"`
			Record struct {
				Text      string `json:"text"`
				CreatedAt string `json:"createdAt"`
			} `json:"record"`
			Embed struct {
				Images []struct {
					Fullsize string `json:"fullsize"`
					Thumb    string `json:"thumb"`
					Alt      string `json:"alt"`
					AspectRatio struct {
						Width  int64 `json:"width"`
						Height int64 `json:"height"`
					} `json:"aspectRatio"`
				} `json:"images"`
			} `json:"embed"`
			ReplyCount  int `json:"replyCount"`
			RepostCount int `json:"repostCount"`
			LikeCount   int `json:"likeCount"`
		} `json:"post"`
	} `json:"feed"`
	Cursor string `json:"cursor"`
}

func (a *BlueskyAdapter) FetchPage(ctx context.Context, cursor string) (FetchResult, error) {
	query := url.Values{}
	query.Set("limit", "20")
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page bskyTimeline
	if err := a.rc.getJSON(ctx, "/app.bsky.feed.getTimeline", query, &page); err != nil {
		return FetchResult{}, err
	}

	items := make([]models.Post, 0, len(page.Feed))
	now := time.Now().UTC()
	for _, entry := range page.Feed {
		p := entry.Post
		publishedAt, err := time.Parse(time.RFC3339, p.Record.CreatedAt)
		if err != nil {
			continue
		}
		displayName := p.Author.DisplayName
		if displayName == "" {
			displayName = p.Author.Handle
		}
		post := models.Post{
			ID:                models.PostID(models.PlatformBluesky, p.URI),
			Platform:          models.PlatformBluesky,
			PlatformID:        p.URI,
			AuthorID:          p.Author.DID,
			AuthorUsername:    p.Author.Handle,
			AuthorDisplayName: displayName,
			AuthorAvatarURL:   nullString(p.Author.Avatar),
			Content:           p.Record.Text,
			PublishedAt:       publishedAt.UTC(),
			FetchedAt:         now,
			LikeCount:         p.LikeCount,
			CommentCount:      p.ReplyCount,
			ShareCount:        p.RepostCount,
		}
		for i, img := range p.Embed.Images {
			post.Media = append(post.Media, models.Media{
				ID:         post.ID + ":" + strconv.Itoa(i),
				PostID:     post.ID,
				Type:       models.MediaImage,
				URL:        img.Fullsize,
				PreviewURL: nullString(img.Thumb),
				Width:      nullInt(img.AspectRatio.Width),
				Height:     nullInt(img.AspectRatio.Height),
				AltText:    nullString(img.Alt),
			})
		}
		items = append(items, post)
	}

	return FetchResult{Items: items, NextCursor: page.Cursor}, nil
}

func (a *BlueskyAdapter) PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error) {
	if !a.Supports(req.Action) {
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformBluesky, Action: req.Action}
	}

	var collection string
	record := map[string]any{"createdAt": time.Now().UTC().Format(time.RFC3339)}
	switch req.Action {
	case ActionLike:
		collection = "app.bsky.feed.like"
		record["subject"] = map[string]string{"uri": req.TargetID}
	case ActionShare:
		collection = "app.bsky.feed.repost"
		record["subject"] = map[string]string{"uri": req.TargetID}
	case ActionComment:
		collection = "app.bsky.feed.post"
		record["text"] = req.Content
		record["reply"] = map[string]any{"parent": map[string]string{"uri": req.TargetID}}
	case ActionPublish:
		collection = "app.bsky.feed.post"
		record["text"] = req.Content
	default:
		return ActionOutcome{}, &CapabilityError{Platform: models.PlatformBluesky, Action: req.Action}
	}

	body := map[string]any{
		"repo":       a.did,
		"collection": collection,
		"record":     record,
	}
	var out struct {
		URI string `json:"uri"`
	}
	err := a.rc.postJSON(ctx, "/com.atproto.repo.createRecord", body, &out)
	return ActionOutcome{RemoteID: out.URI}, err
}
