// Package api implements the JSON handlers of the aggregator's HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"socialhub/aggregator/internal/feed"
	"socialhub/aggregator/internal/interactions"
	"socialhub/aggregator/internal/models"
	"socialhub/aggregator/internal/platform"
	"socialhub/aggregator/internal/publish"
	"socialhub/aggregator/internal/store"
)

const defaultPageSize = 20
const maxPageSize = 100

// FeedService delivers merged feed pages.
type FeedService interface {
	FetchNextPage(ctx context.Context, scope feed.Scope, pageSize int) (*feed.Page, error)
	Reset(ctx context.Context, p models.Platform) error
}

// InteractionService accepts user interactions for background dispatch.
type InteractionService interface {
	Submit(ctx context.Context, postID string, kind models.InteractionType, content string) (*models.Interaction, error)
}

// PublishService pushes authored content to platforms and manages drafts.
type PublishService interface {
	CreatePost(ctx context.Context, content string, targets []models.Platform, mediaPaths []string) (map[models.Platform]publish.Result, error)
	SaveDraft(ctx context.Context, content string, targets []models.Platform, media []models.DraftMedia, scheduledTime time.Time) (*models.Draft, error)
	PublishDraft(ctx context.Context, draftID string) (map[models.Platform]publish.Result, error)
}

// Store is the slice of the cache store the handlers read and write.
type Store interface {
	QueryPosts(ctx context.Context, q store.PostQuery) ([]models.Post, error)
	GetInteraction(ctx context.Context, id string) (*models.Interaction, error)
	InteractionsByStatus(ctx context.Context, status string) ([]models.Interaction, error)
	ActiveAccounts(ctx context.Context) ([]models.ConnectedAccount, error)
	UpsertAccount(ctx context.Context, account *models.ConnectedAccount) error
	DeactivateAccount(ctx context.Context, id string) error
	ListDrafts(ctx context.Context) ([]models.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
	GetFeedPosition(ctx context.Context, feedID string) (*models.FeedPosition, error)
	SaveFeedPosition(ctx context.Context, pos *models.FeedPosition) error
	GetProfile(ctx context.Context) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, p *models.UserProfile) error
}

// TokenService reads the engagement token ledger.
type TokenService interface {
	Balance(ctx context.Context, tokenType string) (*models.TokenBalance, error)
	Transactions(ctx context.Context, tokenType string, limit, offset int) ([]models.TokenTransaction, error)
}

// Handler holds the services behind the HTTP API.
type Handler struct {
	feeds        FeedService
	interactions InteractionService
	publisher    PublishService
	store        Store
	tokens       TokenService
}

// NewHandler creates a handler instance over the given services.
func NewHandler(feeds FeedService, interactions InteractionService, publisher PublishService, store Store, tokens TokenService) *Handler {
	return &Handler{
		feeds:        feeds,
		interactions: interactions,
		publisher:    publisher,
		store:        store,
		tokens:       tokens,
	}
}

// feedResponse is the wire shape of one merged feed page.
type feedResponse struct {
	Items            []models.Post    `json:"items"`
	Warnings         []warningPayload `json:"warnings,omitempty"`
	NextContinuation string           `json:"next_continuation,omitempty"`
}

type warningPayload struct {
	Platform  models.Platform `json:"platform"`
	Reason    string          `json:"reason"`
	Retryable bool            `json:"retryable"`
}

// GetFeed handles GET /v1/feed.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	query := r.URL.Query()
	scope := feed.ScopeAggregated
	if s := query.Get("scope"); s != "" {
		scope = feed.Scope(s)
	}

	pageSize := defaultPageSize
	if sizeStr := query.Get("page_size"); sizeStr != "" {
		parsed, err := strconv.Atoi(sizeStr)
		if err != nil || parsed <= 0 || parsed > maxPageSize {
			log.Warn().Str("page_size", sizeStr).Msg("Invalid 'page_size' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'page_size' parameter: must be between 1 and %d", maxPageSize), http.StatusBadRequest)
			return
		}
		pageSize = parsed
	}

	page, err := h.feeds.FetchNextPage(r.Context(), scope, pageSize)
	if err != nil {
		var agg *platform.AggregateFetchError
		if errors.As(err, &agg) {
			log.Warn().Err(err).Msg("All platforms failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, feed.ErrUnknownScope) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Feed fetch failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := feedResponse{Items: page.Items, NextContinuation: page.Continuation}
	for _, warn := range page.Warnings {
		resp.Warnings = append(resp.Warnings, warningPayload(warn))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetFeed drops a platform's pagination state so the next fetch starts
// from the top of its timeline.
func (h *Handler) ResetFeed(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	p := models.Platform(r.PathValue("platform"))
	if !p.Valid() {
		http.Error(w, fmt.Sprintf("Unknown platform %q", p), http.StatusBadRequest)
		return
	}

	if err := h.feeds.Reset(r.Context(), p); err != nil {
		log.Error().Err(err).Str("platform", string(p)).Msg("Feed reset failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("platform", string(p)).Msg("Feed reset")
	w.WriteHeader(http.StatusNoContent)
}

type interactionRequest struct {
	PostID  string `json:"post_id"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// SubmitInteraction handles POST /v1/interactions.
func (h *Handler) SubmitInteraction(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PostID == "" {
		http.Error(w, "Missing required field: post_id", http.StatusBadRequest)
		return
	}
	kind := models.InteractionType(req.Type)
	switch kind {
	case models.InteractionLike, models.InteractionComment, models.InteractionShare, models.InteractionBookmark:
	default:
		http.Error(w, fmt.Sprintf("Invalid interaction type %q", req.Type), http.StatusBadRequest)
		return
	}
	if kind == models.InteractionComment && strings.TrimSpace(req.Content) == "" {
		http.Error(w, "Comment requires content", http.StatusBadRequest)
		return
	}

	in, err := h.interactions.Submit(r.Context(), req.PostID, kind, req.Content)
	if err != nil {
		if errors.Is(err, interactions.ErrUnknownPost) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("Interaction submit failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, in)
}

// ListInteractions handles GET /v1/interactions.
func (h *Handler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.InteractionPending
	}
	switch status {
	case models.InteractionPending, models.InteractionSynced, models.InteractionFailed:
	default:
		http.Error(w, fmt.Sprintf("Invalid status %q", status), http.StatusBadRequest)
		return
	}

	items, err := h.store.InteractionsByStatus(r.Context(), status)
	if err != nil {
		log.Error().Err(err).Msg("Interaction listing failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.Interaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": items})
}

// GetInteraction reports the dispatch status of one queued interaction, so a
// consumer can poll whether its optimistic action was confirmed.
func (h *Handler) GetInteraction(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id := r.PathValue("id")
	in, err := h.store.GetInteraction(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("interaction_id", id).Msg("Interaction lookup failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if in == nil {
		http.Error(w, fmt.Sprintf("Unknown interaction %q", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

type createPostRequest struct {
	Content    string            `json:"content"`
	Platforms  []models.Platform `json:"platforms"`
	MediaPaths []string          `json:"media_paths,omitempty"`
}

type platformResult struct {
	RemoteID string `json:"remote_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CreatePost handles POST /v1/posts.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	results, err := h.publisher.CreatePost(r.Context(), req.Content, req.Platforms, req.MediaPaths)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payload := make(map[models.Platform]platformResult, len(results))
	for p, res := range results {
		out := platformResult{RemoteID: res.RemoteID}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		payload[p] = out
	}
	log.Info().Int("platforms", len(results)).Msg("Publish request completed")
	writeJSON(w, http.StatusOK, map[string]any{"results": payload})
}

// GetBookmarks handles GET /v1/bookmarks.
func (h *Handler) GetBookmarks(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	limit := defaultPageSize
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxPageSize {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	posts, err := h.store.QueryPosts(r.Context(), store.PostQuery{BookmarkedOnly: true, Limit: limit, Offset: offset})
	if err != nil {
		log.Error().Err(err).Msg("Bookmark listing failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

type accountRequest struct {
	ID          string          `json:"id"`
	Platform    models.Platform `json:"platform"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
}

// ListAccounts handles GET /v1/accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	accounts, err := h.store.ActiveAccounts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Account listing failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []models.ConnectedAccount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// LinkAccount handles POST /v1/accounts.
func (h *Handler) LinkAccount(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if !req.Platform.Valid() {
		http.Error(w, fmt.Sprintf("Unknown platform %q", req.Platform), http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Username == "" {
		http.Error(w, "Missing required fields: id, username", http.StatusBadRequest)
		return
	}

	account := models.NewConnectedAccount(req.ID, req.Platform, req.Username, req.DisplayName)
	if err := h.store.UpsertAccount(r.Context(), account); err != nil {
		log.Error().Err(err).Msg("Account link failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// UnlinkAccount handles DELETE /v1/accounts/{id}. The account is deactivated,
// never deleted, so interaction history keeps a valid reference.
func (h *Handler) UnlinkAccount(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Missing account id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeactivateAccount(r.Context(), id); err != nil {
		log.Error().Err(err).Str("account_id", id).Msg("Account deactivation failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type draftRequest struct {
	Content       string              `json:"content"`
	Platforms     []models.Platform   `json:"platforms"`
	Media         []models.DraftMedia `json:"media,omitempty"`
	ScheduledTime *time.Time          `json:"scheduled_time,omitempty"`
}

// SaveDraft handles POST /v1/drafts.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	var scheduled time.Time
	if req.ScheduledTime != nil {
		scheduled = *req.ScheduledTime
	}
	draft, err := h.publisher.SaveDraft(r.Context(), req.Content, req.Platforms, req.Media, scheduled)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// ListDrafts handles GET /v1/drafts.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	drafts, err := h.store.ListDrafts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Draft listing failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

// PublishDraft handles POST /v1/drafts/{id}/publish.
func (h *Handler) PublishDraft(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id := r.PathValue("id")
	results, err := h.publisher.PublishDraft(r.Context(), id)
	if err != nil {
		if errors.Is(err, publish.ErrUnknownDraft) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", id).Msg("Draft publish failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payload := make(map[models.Platform]platformResult, len(results))
	for p, res := range results {
		out := platformResult{RemoteID: res.RemoteID}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		payload[p] = out
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": payload})
}

// DeleteDraft handles DELETE /v1/drafts/{id}.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	id := r.PathValue("id")
	if err := h.store.DeleteDraft(r.Context(), id); err != nil {
		log.Error().Err(err).Str("draft_id", id).Msg("Draft delete failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPosition handles GET /v1/positions/{feed}.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	feedID := r.PathValue("feed")
	pos, err := h.store.GetFeedPosition(r.Context(), feedID)
	if err != nil {
		log.Error().Err(err).Str("feed_id", feedID).Msg("Position load failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if pos == nil {
		pos = &models.FeedPosition{FeedID: feedID}
	}
	writeJSON(w, http.StatusOK, pos)
}

type positionRequest struct {
	LastPosition     int    `json:"last_position"`
	LastViewedPostID string `json:"last_viewed_post_id,omitempty"`
}

// SavePosition handles PUT /v1/positions/{feed}.
func (h *Handler) SavePosition(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	feedID := r.PathValue("feed")
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.LastPosition < 0 {
		http.Error(w, "last_position cannot be negative", http.StatusBadRequest)
		return
	}

	pos := &models.FeedPosition{
		FeedID:       feedID,
		LastPosition: req.LastPosition,
		LastUpdated:  time.Now().UTC(),
	}
	if req.LastViewedPostID != "" {
		pos.LastViewedPostID.String = req.LastViewedPostID
		pos.LastViewedPostID.Valid = true
	}
	if err := h.store.SaveFeedPosition(r.Context(), pos); err != nil {
		log.Error().Err(err).Str("feed_id", feedID).Msg("Position save failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// GetProfile handles GET /v1/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	profile, err := h.store.GetProfile(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Profile load failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Bio         string `json:"bio,omitempty"`
	AvatarPath  string `json:"avatar_path,omitempty"`
}

// SaveProfile handles PUT /v1/profile.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		http.Error(w, "Missing required field: username", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	profile := &models.UserProfile{
		ID:          models.LocalUserID,
		DisplayName: req.DisplayName,
		Username:    req.Username,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Bio != "" {
		profile.Bio.String = req.Bio
		profile.Bio.Valid = true
	}
	if req.AvatarPath != "" {
		profile.AvatarPath.String = req.AvatarPath
		profile.AvatarPath.Valid = true
	}
	if err := h.store.SaveProfile(r.Context(), profile); err != nil {
		log.Error().Err(err).Msg("Profile save failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetTokens handles GET /v1/tokens/{type}.
func (h *Handler) GetTokens(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	tokenType := r.PathValue("type")
	if tokenType != models.TokenEngagement && tokenType != models.TokenCreator {
		http.Error(w, fmt.Sprintf("Unknown token type %q", tokenType), http.StatusBadRequest)
		return
	}

	balance, err := h.tokens.Balance(r.Context(), tokenType)
	if err != nil {
		log.Error().Err(err).Msg("Balance load failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	transactions, err := h.tokens.Transactions(r.Context(), tokenType, 50, 0)
	if err != nil {
		log.Error().Err(err).Msg("Transaction listing failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []models.TokenTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":      balance,
		"transactions": transactions,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonBytes)
}
