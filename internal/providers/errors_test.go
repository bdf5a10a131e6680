package providers

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota": ErrorQuota,
		"429 rate":           ErrorRate,
		"context too long":   ErrorContext,
		"timeout":            ErrorTransient,
		"bad request":        ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
	if got := ClassifyError(fmt.Errorf("rate limited then %w", ErrDimension)); got != ErrorPermanent {
		t.Fatalf("dimension mismatch should be permanent, got %s", got)
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("nil error classified as %s", got)
	}
}
