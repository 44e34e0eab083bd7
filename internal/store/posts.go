package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"socialhub/aggregator/internal/models"
)

// UpsertPost writes a post and its media into the cache. Counters, content,
// and author data take the remote values; the is_liked and is_bookmarked
// flags are left alone on conflict because the interaction queue is their
// only writer. Media rows are replaced wholesale.
func (s *Store) UpsertPost(ctx context.Context, post *models.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO social_posts (
			id, platform, platform_id, author_id, author_username,
			author_display_name, author_avatar_url, author_verified,
			content, published_at, fetched_at,
			like_count, comment_count, share_count, is_liked, is_bookmarked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			author_id = excluded.author_id,
			author_username = excluded.author_username,
			author_display_name = excluded.author_display_name,
			author_avatar_url = excluded.author_avatar_url,
			author_verified = excluded.author_verified,
			content = excluded.content,
			published_at = excluded.published_at,
			fetched_at = excluded.fetched_at,
			like_count = excluded.like_count,
			comment_count = excluded.comment_count,
			share_count = excluded.share_count`,
		post.ID, post.Platform, post.PlatformID, post.AuthorID, post.AuthorUsername,
		post.AuthorDisplayName, post.AuthorAvatarURL, post.AuthorVerified,
		post.Content, post.PublishedAt.UTC(), post.FetchedAt.UTC(),
		post.LikeCount, post.CommentCount, post.ShareCount, post.IsLiked, post.IsBookmarked,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.ID, err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM post_media WHERE post_id = ?", post.ID); err != nil {
		return fmt.Errorf("failed to clear media for post %s: %w", post.ID, err)
	}
	for _, m := range post.Media {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO post_media (id, post_id, media_type, remote_url, preview_url, width, height, duration_ms, alt_text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				media_type = excluded.media_type,
				remote_url = excluded.remote_url,
				preview_url = excluded.preview_url,
				width = excluded.width,
				height = excluded.height,
				duration_ms = excluded.duration_ms,
				alt_text = excluded.alt_text`,
			m.ID, m.PostID, m.Type, m.URL, m.PreviewURL, m.Width, m.Height, m.Duration, m.AltText,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert media %s: %w", m.ID, err)
		}
	}
	return nil
}

// GetPost returns one post with its media, or nil if the id is unknown.
func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.db.GetContext(ctx, &post, "SELECT * FROM social_posts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", id, err)
	}
	if err := s.attachMedia(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

// PostQuery filters and pages an ordered post listing.
type PostQuery struct {
	Platforms      []models.Platform
	BookmarkedOnly bool
	Limit          int
	Offset         int
}

// QueryPosts returns cached posts ordered newest-first with their media.
func (s *Store) QueryPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	query := "SELECT * FROM social_posts"
	var args []any
	var where []string

	if len(q.Platforms) > 0 {
		placeholders, inArgs, err := sqlx.In("platform IN (?)", q.Platforms)
		if err != nil {
			return nil, fmt.Errorf("failed to build platform filter: %w", err)
		}
		where = append(where, placeholders)
		args = append(args, inArgs...)
	}
	if q.BookmarkedOnly {
		where = append(where, "is_bookmarked = 1")
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY published_at DESC, platform ASC, platform_id ASC"
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	var posts []models.Post
	if err := s.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("post query failed: %w", err)
	}

	refs := make([]*models.Post, len(posts))
	for i := range posts {
		refs[i] = &posts[i]
	}
	if err := s.attachMedia(ctx, refs); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) attachMedia(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	byID := make(map[string]*models.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	query, args, err := sqlx.In("SELECT * FROM post_media WHERE post_id IN (?) ORDER BY id ASC", ids)
	if err != nil {
		return fmt.Errorf("failed to build media query: %w", err)
	}
	var media []models.Media
	if err := s.db.SelectContext(ctx, &media, query, args...); err != nil {
		return fmt.Errorf("media query failed: %w", err)
	}
	for _, m := range media {
		if p, ok := byID[m.PostID]; ok {
			p.Media = append(p.Media, m)
		}
	}
	return nil
}

// SetLiked flips the local like flag on a cached post.
func (s *Store) SetLiked(ctx context.Context, postID string, liked bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE social_posts SET is_liked = ? WHERE id = ?", liked, postID)
	if err != nil {
		return fmt.Errorf("failed to set liked on %s: %w", postID, err)
	}
	return nil
}

// SetBookmarked flips the local bookmark flag on a cached post.
func (s *Store) SetBookmarked(ctx context.Context, postID string, bookmarked bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE social_posts SET is_bookmarked = ? WHERE id = ?", bookmarked, postID)
	if err != nil {
		return fmt.Errorf("failed to set bookmarked on %s: %w", postID, err)
	}
	return nil
}

// AdjustCounters applies local deltas to a post's counters, clamping at zero.
func (s *Store) AdjustCounters(ctx context.Context, postID string, likeDelta, commentDelta, shareDelta int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE social_posts SET
			like_count = MAX(0, like_count + ?),
			comment_count = MAX(0, comment_count + ?),
			share_count = MAX(0, share_count + ?)
		WHERE id = ?`,
		likeDelta, commentDelta, shareDelta, postID)
	if err != nil {
		return fmt.Errorf("failed to adjust counters on %s: %w", postID, err)
	}
	return nil
}

// PurgeOldPosts removes cached posts fetched before the retention cutoff.
// Bookmarked posts are kept regardless of age.
func (s *Store) PurgeOldPosts(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retentionDays must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM post_media WHERE post_id IN (
			SELECT id FROM social_posts WHERE fetched_at < ? AND is_bookmarked = 0
		)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old media: %w", err)
	}
	_ = result

	result, err = s.db.ExecContext(ctx,
		"DELETE FROM social_posts WHERE fetched_at < ? AND is_bookmarked = 0", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old posts: %w", err)
	}
	return result.RowsAffected()
}
