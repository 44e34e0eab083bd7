// Package publish pushes authored content out to one or more platforms and
// manages the local draft lifecycle.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/models"
	"socialhub/aggregator/internal/platform"
)

// ErrUnknownDraft is returned when a draft id matches no stored draft.
var ErrUnknownDraft = errors.New("unknown draft")

// Store is the slice of the cache store the publisher needs.
type Store interface {
	ActiveAccountForPlatform(ctx context.Context, p models.Platform) (*models.ConnectedAccount, error)
	SaveDraft(ctx context.Context, draft *models.Draft, media []models.DraftMedia) error
	GetDraft(ctx context.Context, id string) (*models.Draft, []models.DraftMedia, error)
	ListDrafts(ctx context.Context) ([]models.Draft, error)
	UpdateDraftStatus(ctx context.Context, id, status, lastError string) error
	DeleteDraft(ctx context.Context, id string) error
}

// Ledger credits creator tokens for successful publishes.
type Ledger interface {
	Record(ctx context.Context, tokenType string, amount int64, description, relatedEntityID string) (string, error)
}

// creatorTokensPerPublish is credited once per platform that accepted the post.
const creatorTokensPerPublish = 5

// Result is the per-platform outcome of a multi-platform publish. Exactly one
// of RemoteID or Err is meaningful.
type Result struct {
	RemoteID string `json:"remote_id,omitempty"`
	Err      error  `json:"-"`
}

// Publisher fans authored posts out to platform adapters. Platforms succeed
// and fail independently; the caller gets the full per-platform breakdown.
type Publisher struct {
	store    Store
	registry *platform.Registry
	ledger   Ledger
	now      func() time.Time
}

// New creates a publisher. The ledger may be nil to disable token credits.
func New(store Store, registry *platform.Registry, ledger Ledger) *Publisher {
	return &Publisher{store: store, registry: registry, ledger: ledger, now: time.Now}
}

// CreatePost publishes content to every target platform concurrently and
// returns one result per requested platform. It returns an error only when
// the request itself is invalid, never for per-platform failures.
func (p *Publisher) CreatePost(ctx context.Context, content string, targets []models.Platform, mediaPaths []string) (map[models.Platform]Result, error) {
	if strings.TrimSpace(content) == "" && len(mediaPaths) == 0 {
		return nil, fmt.Errorf("post must have content or media")
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one target platform required")
	}
	seen := make(map[models.Platform]bool, len(targets))
	for _, target := range targets {
		if !target.Valid() {
			return nil, fmt.Errorf("unknown platform %q", target)
		}
		if seen[target] {
			return nil, fmt.Errorf("duplicate target platform %q", target)
		}
		seen[target] = true
	}

	results := make(map[models.Platform]Result, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		go func(target models.Platform) {
			defer wg.Done()
			res := p.publishOne(ctx, target, content, mediaPaths)
			mu.Lock()
			results[target] = res
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	succeeded := 0
	for target, res := range results {
		if res.Err != nil {
			log.Warn().
				Err(res.Err).
				Str("platform", string(target)).
				Msg("Publish failed for platform")
			continue
		}
		succeeded++
	}
	if succeeded > 0 && p.ledger != nil {
		desc := fmt.Sprintf("published to %d platform(s)", succeeded)
		if _, err := p.ledger.Record(ctx, models.TokenCreator, int64(succeeded)*creatorTokensPerPublish, desc, ""); err != nil {
			log.Error().Err(err).Msg("Failed to credit creator tokens")
		}
	}

	return results, nil
}

func (p *Publisher) publishOne(ctx context.Context, target models.Platform, content string, mediaPaths []string) Result {
	account, err := p.store.ActiveAccountForPlatform(ctx, target)
	if err != nil {
		return Result{Err: &platform.TransientError{Platform: target, Err: err}}
	}
	if account == nil {
		return Result{Err: &platform.PermanentError{
			Platform: target, Err: fmt.Errorf("no active account"),
		}}
	}

	adapter, ok := p.registry.Lookup(target)
	if !ok {
		return Result{Err: &platform.PermanentError{
			Platform: target, Err: fmt.Errorf("no adapter registered"),
		}}
	}
	if !adapter.Supports(platform.ActionPublish) {
		return Result{Err: &platform.CapabilityError{Platform: target, Action: platform.ActionPublish}}
	}

	outcome, err := adapter.PerformAction(ctx, platform.ActionRequest{
		Action:     platform.ActionPublish,
		Content:    content,
		MediaPaths: mediaPaths,
	})
	if err != nil {
		return Result{Err: err}
	}
	log.Info().
		Str("platform", string(target)).
		Str("remote_id", outcome.RemoteID).
		Msg("Post published")
	return Result{RemoteID: outcome.RemoteID}
}

// SaveDraft stores authored content locally without publishing. A zero
// scheduledTime leaves the draft unscheduled.
func (p *Publisher) SaveDraft(ctx context.Context, content string, targets []models.Platform, media []models.DraftMedia, scheduledTime time.Time) (*models.Draft, error) {
	if strings.TrimSpace(content) == "" && len(media) == 0 {
		return nil, fmt.Errorf("draft must have content or media")
	}
	targetJSON, err := json.Marshal(targets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode target platforms: %w", err)
	}

	now := p.now().UTC()
	draft := &models.Draft{
		ID:              uuid.NewString(),
		Content:         content,
		TargetPlatforms: string(targetJSON),
		Status:          models.DraftStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !scheduledTime.IsZero() {
		draft.ScheduledTime.Time = scheduledTime.UTC()
		draft.ScheduledTime.Valid = true
		draft.Status = models.DraftStatusScheduled
	}
	for i := range media {
		if media[i].ID == "" {
			media[i].ID = uuid.NewString()
		}
		media[i].DraftID = draft.ID
	}

	if err := p.store.SaveDraft(ctx, draft, media); err != nil {
		return nil, err
	}
	return draft, nil
}

// PublishDraft publishes a stored draft to its target platforms. The draft
// moves to published when at least one platform accepted it, failed when none
// did, and keeps per-platform errors in last_error.
func (p *Publisher) PublishDraft(ctx context.Context, draftID string) (map[models.Platform]Result, error) {
	draft, media, err := p.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownDraft, draftID)
	}
	if draft.Status == models.DraftStatusPublishing {
		return nil, fmt.Errorf("draft %s is already publishing", draftID)
	}

	var targets []models.Platform
	if err := json.Unmarshal([]byte(draft.TargetPlatforms), &targets); err != nil {
		return nil, fmt.Errorf("draft %s has malformed targets: %w", draftID, err)
	}

	if err := p.store.UpdateDraftStatus(ctx, draftID, models.DraftStatusPublishing, ""); err != nil {
		return nil, err
	}

	paths := make([]string, len(media))
	for i, m := range media {
		paths[i] = m.LocalPath
	}

	results, err := p.CreatePost(ctx, draft.Content, targets, paths)
	if err != nil {
		if uerr := p.store.UpdateDraftStatus(ctx, draftID, models.DraftStatusFailed, err.Error()); uerr != nil {
			log.Error().Err(uerr).Str("draft_id", draftID).Msg("Failed to mark draft failed")
		}
		return nil, err
	}

	var failures []string
	succeeded := 0
	for target, res := range results {
		if res.Err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", target, res.Err))
		} else {
			succeeded++
		}
	}

	status := models.DraftStatusPublished
	if succeeded == 0 {
		status = models.DraftStatusFailed
	}
	if err := p.store.UpdateDraftStatus(ctx, draftID, status, strings.Join(failures, "; ")); err != nil {
		log.Error().Err(err).Str("draft_id", draftID).Msg("Failed to record draft outcome")
	}
	return results, nil
}

// PublishDue publishes every scheduled draft whose time has arrived. It is
// called once per sync cycle.
func (p *Publisher) PublishDue(ctx context.Context) error {
	drafts, err := p.store.ListDrafts(ctx)
	if err != nil {
		return err
	}
	now := p.now().UTC()
	for _, d := range drafts {
		if d.Status != models.DraftStatusScheduled || !d.ScheduledTime.Valid {
			continue
		}
		if d.ScheduledTime.Time.After(now) {
			continue
		}
		if _, err := p.PublishDraft(ctx, d.ID); err != nil {
			log.Warn().Err(err).Str("draft_id", d.ID).Msg("Scheduled publish failed")
		}
	}
	return nil
}
