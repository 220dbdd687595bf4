package bathy

import "errors"

var (
	// ErrInsufficientSamples is returned when fewer than MinSamples finite
	// soundings remain after filtering, including when depths were finite
	// but every sample had a non-finite coordinate.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrNoFiniteDepths is returned when samples were supplied but none of
	// them carries a finite depth.
	ErrNoFiniteDepths = errors.New("no finite depth values")

	// ErrInvalidCoordinate is returned by ParseSamples when an x or y value
	// cannot be converted to a finite number.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrFallbackImpossible is returned by FallbackRing when no ring can be
	// built (no samples, or no usable centroid).
	ErrFallbackImpossible = errors.New("fallback contour impossible")

	// ErrContourGenerationFailed wraps any unexpected failure inside the
	// interpolation or tracing stages.
	ErrContourGenerationFailed = errors.New("contour generation failed")
)

// IsClientError reports whether err is caused by the caller's data rather
// than by the engine. Client errors should not be retried.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientSamples) ||
		errors.Is(err, ErrNoFiniteDepths) ||
		errors.Is(err, ErrInvalidCoordinate)
}
