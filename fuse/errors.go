package fuse

import "errors"

var (
	// ErrFusionFailed wraps every error returned by a fusion call.
	ErrFusionFailed = errors.New("data fusion failed")
	// ErrInvalidSource indicates a malformed input source.
	ErrInvalidSource = errors.New("invalid source")
	// ErrMalformedRelatedness indicates a relatedness structure that cannot be aggregated.
	ErrMalformedRelatedness = errors.New("malformed relatedness")
	// ErrNonScalarMetadata indicates a metadata value that is not a string, number, bool or null.
	ErrNonScalarMetadata = errors.New("metadata values must be scalar")
)
