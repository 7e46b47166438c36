package pvr

import (
	"context"
	"net/http"
)

// Catalog defines the recording-server operations the verifier needs.
type Catalog interface {
	// ListCompletedRecordings returns every recording the server reports
	// as finished.
	ListCompletedRecordings(ctx context.Context) ([]Recording, error)
	// ResolveStreamTarget returns the authenticated stream endpoint for a
	// recording.
	ResolveStreamTarget(ctx context.Context, recordingID string) (*StreamTarget, error)
}

// Recording is an immutable snapshot of one catalog entry.
type Recording struct {
	ID              string
	Title           string
	ExpectedSeconds int64  // scheduled duration; 0 when unknown
	FileExtension   string // lowercase, without dot; empty when unknown
	FileSizeBytes   int64  // 0 when unknown
	Completed       bool
}

// StreamTarget is a resolved stream URL plus the auth headers the session
// requires.
type StreamTarget struct {
	URL    string
	Header http.Header
}

// RecordingEntry is one element of the server's recording list response.
type RecordingEntry struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	DurationSeconds int64  `json:"duration_seconds"`
	FileName        string `json:"file_name"`
	FileSize        int64  `json:"file_size"`
	Status          string `json:"status"`
}

// RecordingListResponse is the server's recording list envelope.
type RecordingListResponse struct {
	Recordings []RecordingEntry `json:"recordings"`
}

// SessionResponse is the login response carrying the session key.
type SessionResponse struct {
	SID string `json:"sid"`
}
