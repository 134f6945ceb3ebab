// Package errs defines the error taxonomy shared across the recommendation
// pipeline (spec §7): InvalidDimension, RepositoryError, InvalidConfig, and
// MissingRequirement. These are taxonomy markers, not a type hierarchy —
// callers match them with errors.Is against the exported sentinels.
package errs

import "fmt"

// Sentinel errors for errors.Is matching. Wrap these with fmt.Errorf("...: %w", ErrX)
// to attach context while preserving the taxonomy.
var (
	// ErrInvalidDimension marks a vector-length mismatch. Surfaces only out of
	// the pure math utilities in package vector; indicates a programming error
	// in the caller, so these functions fail fast rather than degrading.
	ErrInvalidDimension = fmt.Errorf("swipeengine: invalid dimension")

	// ErrRepository marks any I/O failure from a collaborator (repository,
	// search index). Recovered locally wherever the caller can still produce
	// a useful response; surfaced to the caller only from ReclusterMoments.
	ErrRepository = fmt.Errorf("swipeengine: repository error")

	// ErrInvalidConfig marks a construction-time configuration problem.
	// cluster.NewClusterer returns it for a non-positive epsilon, minPoints
	// below 2, or an unknown distance function. Weight sets that sum to zero
	// are not rejected with it: the matcher and ranker constructors accept
	// them without error.
	ErrInvalidConfig = fmt.Errorf("swipeengine: invalid config")

	// ErrMissingRequirement marks the case where an engine request has no
	// user embedding, no profile, and no clusters to fall back on. Not
	// treated as a hard failure — callers get an empty recommendation list
	// with an observable log entry, not this error; the engine attaches it
	// to that log entry as a field.
	ErrMissingRequirement = fmt.Errorf("swipeengine: missing requirement")
)

// InvalidDimension wraps ErrInvalidDimension with the two offending lengths.
func InvalidDimension(context string, lenA, lenB int) error {
	return fmt.Errorf("%s: %w (got %d and %d)", context, ErrInvalidDimension, lenA, lenB)
}

// Repository wraps ErrRepository with the failing operation's context.
func Repository(context string, cause error) error {
	return fmt.Errorf("%s: %w: %v", context, ErrRepository, cause)
}

// InvalidConfig wraps ErrInvalidConfig with a human-readable reason.
func InvalidConfig(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidConfig)
}
