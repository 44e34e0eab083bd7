package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"socialhub/aggregator/internal/models"
)

// TransientError marks a failure worth retrying later: network trouble,
// timeouts, rate limits. Cursors must not advance past a transient failure.
type TransientError struct {
	Platform models.Platform
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Platform, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying will not fix: revoked auth,
// platform-side rejection of the request.
type PermanentError struct {
	Platform models.Platform
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Platform, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// CapabilityError reports that a platform does not offer an action at all.
// It is always terminal for that platform; there is nothing to retry.
type CapabilityError struct {
	Platform models.Platform
	Action   Action
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Platform, e.Action)
}

// AggregateFetchError is returned only when every platform in a fan-out
// failed. It carries each per-platform failure reason.
type AggregateFetchError struct {
	Failures map[models.Platform]error
}

func (e *AggregateFetchError) Error() string {
	platforms := make([]string, 0, len(e.Failures))
	for p := range e.Failures {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)

	parts := make([]string, 0, len(platforms))
	for _, p := range platforms {
		parts = append(parts, fmt.Sprintf("%s: %v", p, e.Failures[models.Platform(p)]))
	}
	return fmt.Sprintf("all platforms failed: %s", strings.Join(parts, "; "))
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsCapability reports whether err is (or wraps) a CapabilityError.
func IsCapability(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}
