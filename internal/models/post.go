package models

import (
	"database/sql"
	"time"
)

// Post represents a row in the social_posts table. The id is derived from the
// platform and the platform's own id for the item, so re-fetching the same
// remote post always maps onto the same row.
type Post struct {
	ID                string         `db:"id" json:"id"`
	Platform          Platform       `db:"platform" json:"platform"`
	PlatformID        string         `db:"platform_id" json:"platform_id"`
	AuthorID          string         `db:"author_id" json:"author_id"`
	AuthorUsername    string         `db:"author_username" json:"author_username"`
	AuthorDisplayName string         `db:"author_display_name" json:"author_display_name"`
	AuthorAvatarURL   sql.NullString `db:"author_avatar_url" json:"author_avatar_url,omitempty"`
	AuthorVerified    bool           `db:"author_verified" json:"author_verified"`
	Content           string         `db:"content" json:"content"`
	PublishedAt       time.Time      `db:"published_at" json:"published_at"`
	FetchedAt         time.Time      `db:"fetched_at" json:"fetched_at"`
	LikeCount         int            `db:"like_count" json:"like_count"`
	CommentCount      int            `db:"comment_count" json:"comment_count"`
	ShareCount        int            `db:"share_count" json:"share_count"`
	IsLiked           bool           `db:"is_liked" json:"is_liked"`
	IsBookmarked      bool           `db:"is_bookmarked" json:"is_bookmarked"`

	// Media is loaded from post_media, not a column of social_posts.
	Media []Media `db:"-" json:"media"`
}

// Media represents a row in the post_media table. Attachments are replaced
// wholesale when a post is re-fetched, never patched field by field.
type Media struct {
	ID         string        `db:"id" json:"id"`
	PostID     string        `db:"post_id" json:"post_id"`
	Type       MediaType     `db:"media_type" json:"type"`
	URL        string        `db:"remote_url" json:"url"`
	PreviewURL sql.NullString `db:"preview_url" json:"preview_url,omitempty"`
	Width      sql.NullInt64 `db:"width" json:"width,omitempty"`
	Height     sql.NullInt64 `db:"height" json:"height,omitempty"`
	Duration   sql.NullInt64 `db:"duration_ms" json:"duration_ms,omitempty"`
	AltText    sql.NullString `db:"alt_text" json:"alt_text,omitempty"`
}

// PostID derives the globally unique post id from a platform and the
// platform's native item id. The mapping is deterministic: the same remote
// item always yields the same id, across fetches and restarts.
func PostID(platform Platform, platformID string) string {
	return string(platform) + ":" + platformID
}
