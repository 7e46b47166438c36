package verify

import "github.com/shapedtime/hoarderwatch/internal/pvr"

// State tags a verdict.
type State string

const (
	StateVerified State = "verified"
	StateMismatch State = "mismatch"
)

// Verdict is the classification of one recording, recomputed on every pass
// from the cached detected duration and the catalog's current expected
// duration.
type Verdict struct {
	State           State `json:"state"`
	ExpectedSeconds int64 `json:"expected_seconds"`
	DetectedSeconds int64 `json:"detected_seconds"`

	// LikelyComplete refines a mismatch for display: the file is large
	// enough that it probably holds the full recording and the clock is
	// what is off.
	LikelyComplete bool `json:"likely_complete,omitempty"`
}

// Label returns the presentation detail for a verdict.
func (v Verdict) Label() string {
	if v.State == StateVerified {
		return "duration verified"
	}
	if v.LikelyComplete {
		return "file looks complete, playback may desync"
	}
	return "recording appears truncated"
}

// RecordingStatus pairs a catalog snapshot with its current verdict, if any.
type RecordingStatus struct {
	Recording pvr.Recording
	Verdict   *Verdict
}

// PassStats summarizes one verification pass.
type PassStats struct {
	Eligible  int `json:"eligible"`
	CacheHits int `json:"cache_hits"`
	Probed    int `json:"probed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
