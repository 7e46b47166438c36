package verify

import "errors"

// Sentinel errors for verification operations.
var (
	ErrRecordingNotFound = errors.New("recording not found")
	ErrProbeFailed       = errors.New("probe produced no duration")
)
