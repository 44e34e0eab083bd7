// Package interactions implements the optimistic interaction queue: user
// actions mutate the local cache immediately, are persisted as pending
// records, and are pushed to the owning platform in the background with
// bounded retries and rollback on terminal failure.
package interactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/models"
	"socialhub/aggregator/internal/platform"
)

// ErrUnknownPost is returned by Submit when the target post is not cached.
var ErrUnknownPost = errors.New("unknown post")

// Store is the slice of the cache store the queue needs.
type Store interface {
	GetPost(ctx context.Context, id string) (*models.Post, error)
	InsertInteraction(ctx context.Context, in *models.Interaction) error
	UpdateInteractionStatus(ctx context.Context, id, status string, attempts int, lastError string) error
	InteractionsByStatus(ctx context.Context, status string) ([]models.Interaction, error)
	SetLiked(ctx context.Context, postID string, liked bool) error
	SetBookmarked(ctx context.Context, postID string, bookmarked bool) error
	AdjustCounters(ctx context.Context, postID string, likeDelta, commentDelta, shareDelta int) error
}

// Ledger credits engagement tokens once an interaction is confirmed remotely.
type Ledger interface {
	Record(ctx context.Context, tokenType string, amount int64, description, relatedEntityID string) (string, error)
}

// Config tunes dispatch retry behavior.
type Config struct {
	MaxAttempts int           // remote attempts per submission before parking
	BaseBackoff time.Duration // first retry delay, doubled per attempt
	MaxBackoff  time.Duration // backoff ceiling
}

// Queue accepts user interactions, applies them optimistically, and
// reconciles them with the owning platform.
type Queue struct {
	store    Store
	registry *platform.Registry
	ledger   Ledger
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	postTail map[string]chan struct{} // tail of the per-post dispatch chain
	inFlight map[string]bool          // pending ids with a live dispatch
	wg       sync.WaitGroup
}

// engagement token credit per confirmed interaction type.
var tokenCredit = map[models.InteractionType]int64{
	models.InteractionLike:     1,
	models.InteractionBookmark: 1,
	models.InteractionComment:  2,
	models.InteractionShare:    3,
}

// NewQueue creates an interaction queue. The ledger may be nil to disable
// token credits.
func NewQueue(store Store, registry *platform.Registry, ledger Ledger, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	return &Queue{
		store:    store,
		registry: registry,
		ledger:   ledger,
		cfg:      cfg,
		now:      time.Now,
		postTail: make(map[string]chan struct{}),
		inFlight: make(map[string]bool),
	}
}

// Submit records an interaction against a cached post, applies the optimistic
// local mutation synchronously, and dispatches to the platform in the
// background. The returned record is in pending state.
func (q *Queue) Submit(ctx context.Context, postID string, kind models.InteractionType, content string) (*models.Interaction, error) {
	post, err := q.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownPost, postID)
	}

	now := q.now().UTC()
	in := &models.Interaction{
		ID:        uuid.NewString(),
		PostID:    postID,
		Type:      kind,
		Status:    models.InteractionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if content != "" {
		in.Content = sql.NullString{String: content, Valid: true}
	}

	if err := q.store.InsertInteraction(ctx, in); err != nil {
		return nil, err
	}
	if err := q.applyOptimistic(ctx, in); err != nil {
		// The record survives; dispatch still runs and the cache converges on
		// the next re-fetch.
		log.Warn().Err(err).Str("interaction_id", in.ID).Msg("Optimistic mutation failed")
	}

	q.dispatchAsync(*in)
	return in, nil
}

// ReconcileAll pushes every pending interaction once, in creation order. It
// is called at the start of each sync cycle and at startup.
func (q *Queue) ReconcileAll(ctx context.Context) error {
	pending, err := q.store.InteractionsByStatus(ctx, models.InteractionPending)
	if err != nil {
		return err
	}
	for _, in := range pending {
		q.dispatchAsync(in)
	}
	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("Reconciling pending interactions")
	}
	return nil
}

// Wait blocks until all background dispatches have finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// dispatchAsync starts a dispatch goroutine unless one is already running for
// this record. Dispatches against the same post are chained so they reach the
// platform in the order they were enqueued.
func (q *Queue) dispatchAsync(in models.Interaction) {
	q.mu.Lock()
	if q.inFlight[in.ID] {
		q.mu.Unlock()
		return
	}
	q.inFlight[in.ID] = true
	prev := q.postTail[in.PostID]
	done := make(chan struct{})
	q.postTail[in.PostID] = done
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(done)
		defer func() {
			q.mu.Lock()
			delete(q.inFlight, in.ID)
			q.mu.Unlock()
		}()
		if prev != nil {
			<-prev
		}
		q.dispatch(context.Background(), in)
	}()
}

// dispatch pushes one interaction to its platform with bounded retries. The
// caller has already serialized dispatches per post.
func (q *Queue) dispatch(ctx context.Context, in models.Interaction) {
	post, err := q.store.GetPost(ctx, in.PostID)
	if err != nil || post == nil {
		q.fail(ctx, in, fmt.Sprintf("post no longer cached: %v", err))
		return
	}

	adapter, ok := q.registry.Lookup(post.Platform)
	if !ok {
		q.fail(ctx, in, fmt.Sprintf("no adapter for %s", post.Platform))
		return
	}

	req := platform.ActionRequest{
		Action:   actionFor(in.Type),
		TargetID: post.PlatformID,
		Content:  in.Content.String,
	}
	if !adapter.Supports(req.Action) {
		err := &platform.CapabilityError{Platform: post.Platform, Action: req.Action}
		q.fail(ctx, in, err.Error())
		return
	}

	// Each dispatch gets a fresh retry budget; attempts tracks the lifetime
	// count across reconcile passes.
	attempts := in.Attempts
	backoff := q.cfg.BaseBackoff
	for try := 0; try < q.cfg.MaxAttempts; try++ {
		attempts++
		_, err := adapter.PerformAction(ctx, req)
		if err == nil {
			q.confirm(ctx, in, attempts)
			return
		}

		if !platform.IsTransient(err) {
			// Permanent and capability failures are terminal.
			if uerr := q.store.UpdateInteractionStatus(ctx, in.ID, models.InteractionFailed, attempts, err.Error()); uerr != nil {
				log.Error().Err(uerr).Str("interaction_id", in.ID).Msg("Failed to mark interaction failed")
			}
			q.rollback(ctx, in)
			log.Warn().
				Err(err).
				Str("interaction_id", in.ID).
				Str("post_id", in.PostID).
				Msg("Interaction rejected by platform, rolled back")
			return
		}

		if try == q.cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		if ctx.Err() != nil {
			break
		}
		backoff *= 2
		if backoff > q.cfg.MaxBackoff {
			backoff = q.cfg.MaxBackoff
		}
	}

	// Retries exhausted on transient errors: the optimistic state stays and
	// the record remains pending for the next reconcile pass.
	if err := q.store.UpdateInteractionStatus(ctx, in.ID, models.InteractionPending, attempts, "retries exhausted"); err != nil {
		log.Error().Err(err).Str("interaction_id", in.ID).Msg("Failed to park interaction")
	}
	log.Warn().
		Str("interaction_id", in.ID).
		Int("attempts", attempts).
		Msg("Interaction parked for next reconcile")
}

func (q *Queue) confirm(ctx context.Context, in models.Interaction, attempts int) {
	if err := q.store.UpdateInteractionStatus(ctx, in.ID, models.InteractionSynced, attempts, ""); err != nil {
		log.Error().Err(err).Str("interaction_id", in.ID).Msg("Failed to mark interaction synced")
		return
	}
	if q.ledger != nil {
		amount := tokenCredit[in.Type]
		if amount > 0 {
			desc := fmt.Sprintf("%s on %s", in.Type, in.PostID)
			if _, err := q.ledger.Record(ctx, models.TokenEngagement, amount, desc, in.ID); err != nil {
				log.Error().Err(err).Str("interaction_id", in.ID).Msg("Failed to credit engagement tokens")
			}
		}
	}
	log.Debug().
		Str("interaction_id", in.ID).
		Str("post_id", in.PostID).
		Str("type", string(in.Type)).
		Msg("Interaction synced")
}

func (q *Queue) fail(ctx context.Context, in models.Interaction, reason string) {
	if err := q.store.UpdateInteractionStatus(ctx, in.ID, models.InteractionFailed, in.Attempts, reason); err != nil {
		log.Error().Err(err).Str("interaction_id", in.ID).Msg("Failed to mark interaction failed")
	}
	q.rollback(ctx, in)
}

// applyOptimistic mutates the cached post as if the platform had already
// accepted the interaction.
func (q *Queue) applyOptimistic(ctx context.Context, in *models.Interaction) error {
	switch in.Type {
	case models.InteractionLike:
		if err := q.store.SetLiked(ctx, in.PostID, true); err != nil {
			return err
		}
		return q.store.AdjustCounters(ctx, in.PostID, 1, 0, 0)
	case models.InteractionComment:
		return q.store.AdjustCounters(ctx, in.PostID, 0, 1, 0)
	case models.InteractionShare:
		return q.store.AdjustCounters(ctx, in.PostID, 0, 0, 1)
	case models.InteractionBookmark:
		return q.store.SetBookmarked(ctx, in.PostID, true)
	default:
		return fmt.Errorf("unknown interaction type %s", in.Type)
	}
}

// rollback reverts the optimistic mutation after a terminal failure.
func (q *Queue) rollback(ctx context.Context, in models.Interaction) {
	var err error
	switch in.Type {
	case models.InteractionLike:
		if err = q.store.SetLiked(ctx, in.PostID, false); err == nil {
			err = q.store.AdjustCounters(ctx, in.PostID, -1, 0, 0)
		}
	case models.InteractionComment:
		err = q.store.AdjustCounters(ctx, in.PostID, 0, -1, 0)
	case models.InteractionShare:
		err = q.store.AdjustCounters(ctx, in.PostID, 0, 0, -1)
	case models.InteractionBookmark:
		err = q.store.SetBookmarked(ctx, in.PostID, false)
	}
	if err != nil {
		log.Error().Err(err).Str("interaction_id", in.ID).Msg("Failed to roll back optimistic mutation")
	}
}

func actionFor(kind models.InteractionType) platform.Action {
	switch kind {
	case models.InteractionLike:
		return platform.ActionLike
	case models.InteractionComment:
		return platform.ActionComment
	case models.InteractionShare:
		return platform.ActionShare
	case models.InteractionBookmark:
		return platform.ActionSave
	default:
		return platform.Action(kind)
	}
}
