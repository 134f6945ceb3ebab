package errs_test

import (
	"errors"
	"testing"

	"github.com/circle-system/swipeengine/internal/errs"
)

func TestInvalidDimension_WrapsSentinelAndLengths(t *testing.T) {
	err := errs.InvalidDimension("cosine similarity", 3, 5)
	if !errors.Is(err, errs.ErrInvalidDimension) {
		t.Error("expected errors.Is to match ErrInvalidDimension")
	}
	want := "cosine similarity: swipeengine: invalid dimension (got 3 and 5)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestRepository_WrapsSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := errs.Repository("find similar", cause)
	if !errors.Is(err, errs.ErrRepository) {
		t.Error("expected errors.Is to match ErrRepository")
	}
	want := "find similar: swipeengine: repository error: connection refused"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestInvalidConfig_WrapsSentinelAndReason(t *testing.T) {
	err := errs.InvalidConfig("weights must sum to a positive value")
	if !errors.Is(err, errs.ErrInvalidConfig) {
		t.Error("expected errors.Is to match ErrInvalidConfig")
	}
	want := "weights must sum to a positive value: swipeengine: invalid config"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestErrMissingRequirement_IsDistinctSentinel(t *testing.T) {
	wrapped := errors.New("wrapped: " + errs.ErrMissingRequirement.Error())
	if errors.Is(wrapped, errs.ErrMissingRequirement) {
		t.Error("a manually concatenated string should not satisfy errors.Is")
	}
	if !errors.Is(errs.ErrMissingRequirement, errs.ErrMissingRequirement) {
		t.Error("sentinel should match itself")
	}
}
