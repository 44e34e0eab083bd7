// Package platform defines the adapter capability shared by every social
// platform client, the error taxonomy the rest of the system dispatches on,
// and the registry used to look adapters up at fan-out time.
package platform

import (
	"context"

	"socialhub/aggregator/internal/models"
)

// Action is a remote operation an adapter may offer.
type Action string

const (
	ActionLike    Action = "like"
	ActionComment Action = "comment"
	ActionShare   Action = "share"
	ActionSave    Action = "save"
	ActionPublish Action = "publish"
)

// FetchResult is one page of normalized items from a platform. NextCursor is
// opaque to everything outside the adapter; an empty NextCursor means the
// platform has no further pages right now.
type FetchResult struct {
	Items      []models.Post
	NextCursor string
}

// ActionRequest describes a remote action against a platform item.
type ActionRequest struct {
	Action     Action
	TargetID   string   // the platform's native id, not the unified post id
	Content    string   // comment text or publish body
	MediaPaths []string // local media to attach on publish
}

// ActionOutcome is the platform's acknowledgement of a performed action.
type ActionOutcome struct {
	RemoteID string // platform-assigned id of the created entity, when any
}

// Adapter is the capability every platform client implements. FetchPage and
// PerformAction are the only operations the aggregation core ever invokes;
// auth and wire details stay inside the adapter.
type Adapter interface {
	Platform() models.Platform

	// Supports reports whether the platform offers the action at all.
	// PerformAction on an unsupported action returns *CapabilityError.
	Supports(action Action) bool

	// FetchPage returns the next page of posts after the given opaque cursor.
	// An empty cursor requests the newest page.
	FetchPage(ctx context.Context, cursor string) (FetchResult, error)

	PerformAction(ctx context.Context, req ActionRequest) (ActionOutcome, error)
}
