package feed

import (
	"testing"
	"time"

	"socialhub/aggregator/internal/models"
)

func TestContinuationRoundTrip(t *testing.T) {
	in := Continuation{
		Cursors: map[models.Platform]string{
			models.PlatformBluesky:  "at://cursor/123",
			models.PlatformMastodon: "109501",
		},
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	token, err := EncodeContinuation(in)
	if err != nil {
		t.Fatalf("EncodeContinuation failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	out, err := DecodeContinuation(token)
	if err != nil {
		t.Fatalf("DecodeContinuation failed: %v", err)
	}
	if len(out.Cursors) != len(in.Cursors) {
		t.Fatalf("expected %d cursors, got %d", len(in.Cursors), len(out.Cursors))
	}
	for p, want := range in.Cursors {
		if out.Cursors[p] != want {
			t.Errorf("cursor for %s: expected %q, got %q", p, want, out.Cursors[p])
		}
	}
	if !out.GeneratedAt.Equal(in.GeneratedAt) {
		t.Errorf("expected GeneratedAt %v, got %v", in.GeneratedAt, out.GeneratedAt)
	}
}

func TestDecodeContinuationRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!!!", "bm90IGpzb24="} {
		if _, err := DecodeContinuation(token); err == nil {
			t.Errorf("expected error decoding %q", token)
		}
	}
}
