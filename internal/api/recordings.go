package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/hoarderwatch/internal/verify"
)

// RecordingResponse pairs a catalog entry with its current verdict.
type RecordingResponse struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	ExpectedSeconds int64            `json:"expected_seconds"`
	FileExtension   string           `json:"file_extension,omitempty"`
	FileSizeBytes   int64            `json:"file_size_bytes,omitempty"`
	Verdict         *VerdictResponse `json:"verdict,omitempty"`
}

// VerdictResponse is the classification payload exposed to list UIs.
type VerdictResponse struct {
	State           verify.State `json:"state"`
	ExpectedSeconds int64        `json:"expected_seconds"`
	DetectedSeconds int64        `json:"detected_seconds"`
	Label           string       `json:"label"`
}

func verdictResponse(v *verify.Verdict) *VerdictResponse {
	if v == nil {
		return nil
	}
	return &VerdictResponse{
		State:           v.State,
		ExpectedSeconds: v.ExpectedSeconds,
		DetectedSeconds: v.DetectedSeconds,
		Label:           v.Label(),
	}
}

// listRecordings returns the last catalog snapshot with verdicts.
func (s *Server) listRecordings(c *gin.Context) {
	statuses := s.verifier.Recordings()

	out := make([]RecordingResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, RecordingResponse{
			ID:              st.Recording.ID,
			Title:           st.Recording.Title,
			ExpectedSeconds: st.Recording.ExpectedSeconds,
			FileExtension:   st.Recording.FileExtension,
			FileSizeBytes:   st.Recording.FileSizeBytes,
			Verdict:         verdictResponse(st.Verdict),
		})
	}

	c.JSON(http.StatusOK, gin.H{"recordings": out})
}

// getVerdict returns the verdict for a single recording, 404 while the
// recording is still unverified.
func (s *Server) getVerdict(c *gin.Context) {
	id := c.Param("id")

	v := s.verifier.Verdict(id)
	if v == nil {
		errorResponse(c, http.StatusNotFound, "recording not verified yet")
		return
	}

	c.JSON(http.StatusOK, verdictResponse(v))
}

// getProbeHistory returns recent probe attempts for a recording.
func (s *Server) getProbeHistory(c *gin.Context) {
	if s.historyRepo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "probe history not available")
		return
	}

	id := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	attempts, err := s.historyRepo.ListByRecording(id, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// reprobeRecording drops the cached duration and probes the recording again.
func (s *Server) reprobeRecording(c *gin.Context) {
	id := c.Param("id")

	v, err := s.verifier.Reprobe(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, verify.ErrRecordingNotFound):
			errorResponse(c, http.StatusNotFound, "recording not found")
		case errors.Is(err, verify.ErrProbeFailed):
			errorResponse(c, http.StatusBadGateway, "probe produced no duration")
		default:
			errorResponse(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, verdictResponse(v))
}

// triggerPass refreshes the catalog and runs a verification pass now.
func (s *Server) triggerPass(c *gin.Context) {
	stats, err := s.runner.RunOnce(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, stats)
}

// getStatus reports aggregate verification state.
func (s *Server) getStatus(c *gin.Context) {
	tracked, verified, mismatched, unverified := s.verifier.VerdictCounts()

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"tracked":    tracked,
		"verified":   verified,
		"mismatched": mismatched,
		"unverified": unverified,
	})
}
