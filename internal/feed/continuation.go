package feed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"socialhub/aggregator/internal/models"
)

// Continuation is the page-level resumption marker handed back with every
// page. It snapshots the per-platform cursors as of the call; the overflow
// buffer itself lives in memory only, so resuming from a marker after a
// restart re-fetches buffered items and relies on merge deduplication.
type Continuation struct {
	Cursors     map[models.Platform]string `json:"cursors"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// EncodeContinuation creates the opaque marker string.
func EncodeContinuation(c Continuation) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode continuation: %w", err)
	}
	return base64.URLEncoding.EncodeToString(payload), nil
}

// DecodeContinuation parses an opaque marker back into its snapshot.
func DecodeContinuation(encoded string) (Continuation, error) {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Continuation{}, fmt.Errorf("invalid continuation encoding: %w", err)
	}
	var c Continuation
	if err := json.Unmarshal(decoded, &c); err != nil {
		return Continuation{}, fmt.Errorf("invalid continuation format: %w", err)
	}
	return c, nil
}
