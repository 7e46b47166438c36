package verify

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shapedtime/hoarderwatch/internal/cache"
	"github.com/shapedtime/hoarderwatch/internal/config"
	"github.com/shapedtime/hoarderwatch/internal/history"
	"github.com/shapedtime/hoarderwatch/internal/metrics"
	"github.com/shapedtime/hoarderwatch/internal/probe"
	"github.com/shapedtime/hoarderwatch/internal/pvr"
)

// TargetResolver resolves a recording id into an authenticated stream
// endpoint.
type TargetResolver interface {
	ResolveStreamTarget(ctx context.Context, recordingID string) (*pvr.StreamTarget, error)
}

// Prober performs size discovery and partial-byte duration probing.
type Prober interface {
	TotalSize(ctx context.Context, t probe.Target) (int64, error)
	ProbeDuration(ctx context.Context, t probe.Target, c probe.Container, totalSize int64) (int64, error)
}

// Compile-time verification
var _ Prober = (*probe.Fetcher)(nil)

// Service verifies recorded durations against the schedule.
type Service interface {
	// RunPass filters the given recordings for eligibility, classifies
	// cached ones and probes the rest concurrently. Idempotent: cached
	// recordings cause no network traffic.
	RunPass(ctx context.Context, recordings []pvr.Recording) PassStats

	// Verdict returns the current classification for a recording, or nil
	// while it is still unverified.
	Verdict(recordingID string) *Verdict

	// Reprobe drops the cache entry for a recording and probes it again.
	Reprobe(ctx context.Context, recordingID string) (*Verdict, error)

	// Recordings returns the last catalog snapshot with verdicts, sorted
	// by recording id.
	Recordings() []RecordingStatus

	// VerdictCounts reports tracked recordings broken down by verdict.
	VerdictCounts() (tracked, verified, mismatched, unverified int)
}

type service struct {
	resolver TargetResolver
	prober   Prober
	store    cache.Store
	cfg      config.VerifyConfig

	history *history.Repository // optional
	metrics *metrics.Metrics    // optional

	mu         sync.RWMutex
	verdicts   map[string]Verdict
	recordings map[string]pvr.Recording
	log        *slog.Logger
}

// Compile-time verification
var _ Service = (*service)(nil)
var _ metrics.VerdictSource = (*service)(nil)

// Option configures optional dependencies.
type Option func(*service)

// WithHistory records every probe attempt for diagnostics.
func WithHistory(repo *history.Repository) Option {
	return func(s *service) {
		s.history = repo
	}
}

// WithMetrics instruments probing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// NewService creates the verification service.
func NewService(resolver TargetResolver, prober Prober, store cache.Store, cfg config.VerifyConfig, opts ...Option) Service {
	s := &service{
		resolver:   resolver,
		prober:     prober,
		store:      store,
		cfg:        cfg,
		verdicts:   make(map[string]Verdict),
		recordings: make(map[string]pvr.Recording),
		log:        slog.With("component", "verifier"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Concurrency <= 0 {
		s.cfg.Concurrency = 4
	}
	if s.cfg.MinProbeSize <= 0 {
		s.cfg.MinProbeSize = probe.DefaultMinProbeSize
	}
	if s.cfg.MismatchRatio <= 0 {
		s.cfg.MismatchRatio = 0.9
	}
	return s
}

func (s *service) RunPass(ctx context.Context, recordings []pvr.Recording) PassStats {
	eligible := make([]pvr.Recording, 0, len(recordings))
	for _, rec := range recordings {
		if rec.Completed && rec.ExpectedSeconds > 0 {
			eligible = append(eligible, rec)
		}
	}

	// Replace the catalog snapshot wholesale; expected durations may have
	// been corrected server-side since the last pass.
	s.mu.Lock()
	s.recordings = make(map[string]pvr.Recording, len(eligible))
	for _, rec := range eligible {
		s.recordings[rec.ID] = rec
	}
	s.mu.Unlock()

	var statsMu sync.Mutex
	stats := PassStats{Eligible: len(eligible)}
	bump := func(f func(*PassStats)) {
		statsMu.Lock()
		f(&stats)
		statsMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, rec := range eligible {
		rec := rec
		g.Go(func() error {
			s.processRecording(gctx, rec, bump)
			return nil // probe failures never abort the batch
		})
	}
	g.Wait()

	if s.metrics != nil {
		s.metrics.PassesTotal.Inc()
	}
	s.log.Info("verification pass complete",
		"eligible", stats.Eligible,
		"cache_hits", stats.CacheHits,
		"probed", stats.Probed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats
}

// processRecording drives one recording from unprobed to classified, or
// leaves it unverified for the next pass.
func (s *service) processRecording(ctx context.Context, rec pvr.Recording, bump func(func(*PassStats))) {
	detected, cached, err := s.store.Get(rec.ID)
	if err != nil {
		s.log.Warn("cache read failed", "recording", rec.ID, "error", err)
	}
	if cached {
		s.setVerdict(rec.ID, s.classify(rec, detected))
		bump(func(p *PassStats) { p.CacheHits++ })
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return
	}

	detected, outcome := s.probeRecording(ctx, rec)
	switch outcome {
	case history.OutcomeOK:
		s.setVerdict(rec.ID, s.classify(rec, detected))
		bump(func(p *PassStats) { p.Probed++ })
	case history.OutcomeUnprobeableSize:
		bump(func(p *PassStats) { p.Skipped++ })
	default:
		bump(func(p *PassStats) { p.Failed++ })
	}
}

// probeRecording resolves the stream target, discovers the size and runs the
// container prober. On success the detected duration is written to the cache
// exactly once. Every attempt is logged to history when configured.
func (s *service) probeRecording(ctx context.Context, rec pvr.Recording) (int64, history.Outcome) {
	container := probe.DetectContainer(rec.FileExtension)
	start := time.Now()

	detected, err := s.probeOnce(ctx, rec, container)

	if s.metrics != nil {
		s.metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	}

	outcome := history.OutcomeOK
	errText := ""
	switch {
	case err == nil:
	case errors.Is(err, probe.ErrUnprobeableSize):
		outcome = history.OutcomeUnprobeableSize
		errText = err.Error()
	case errors.Is(err, probe.ErrNoDuration):
		outcome = history.OutcomeParseError
		errText = err.Error()
	default:
		outcome = history.OutcomeNetworkError
		errText = err.Error()
	}

	if err != nil {
		s.log.Debug("probe failed",
			"recording", rec.ID,
			"container", container.String(),
			"outcome", string(outcome),
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.ProbeFailures.WithLabelValues(string(outcome)).Inc()
		}
	} else {
		// A cancelled probe must not leave a cache write behind.
		if ctx.Err() != nil {
			return 0, history.OutcomeNetworkError
		}
		if werr := s.store.Set(rec.ID, detected); werr != nil {
			s.log.Warn("cache write failed", "recording", rec.ID, "error", werr)
		}
		if s.metrics != nil {
			s.metrics.ProbesTotal.WithLabelValues(container.String()).Inc()
		}
	}

	if s.history != nil {
		attempt := history.Attempt{
			RecordingID:     rec.ID,
			Container:       container.String(),
			ExpectedSeconds: rec.ExpectedSeconds,
			Outcome:         outcome,
			Error:           errText,
		}
		if err == nil {
			attempt.DetectedSeconds = &detected
		}
		if herr := s.history.Record(attempt); herr != nil {
			s.log.Warn("failed to record probe attempt", "recording", rec.ID, "error", herr)
		}
	}

	return detected, outcome
}

func (s *service) probeOnce(ctx context.Context, rec pvr.Recording, container probe.Container) (int64, error) {
	target, err := s.resolver.ResolveStreamTarget(ctx, rec.ID)
	if err != nil {
		return 0, err
	}
	pt := probe.Target{URL: target.URL, Header: target.Header}

	size, err := s.prober.TotalSize(ctx, pt)
	if err != nil {
		return 0, err
	}
	if size < s.cfg.MinProbeSize {
		return 0, probe.ErrUnprobeableSize
	}

	return s.prober.ProbeDuration(ctx, pt, container, size)
}

// classify applies the mismatch threshold, plus the bytes-per-second
// refinement that distinguishes a truncated file from a mis-timestamped one.
func (s *service) classify(rec pvr.Recording, detected int64) Verdict {
	v := Verdict{
		ExpectedSeconds: rec.ExpectedSeconds,
		DetectedSeconds: detected,
	}

	if float64(detected) < float64(rec.ExpectedSeconds)*s.cfg.MismatchRatio {
		v.State = StateMismatch
		if rec.FileSizeBytes > 0 && rec.ExpectedSeconds > 0 &&
			rec.FileSizeBytes/rec.ExpectedSeconds >= s.cfg.CompleteFileRate {
			v.LikelyComplete = true
		}
		return v
	}

	v.State = StateVerified
	return v
}

func (s *service) setVerdict(id string, v Verdict) {
	s.mu.Lock()
	s.verdicts[id] = v
	s.mu.Unlock()
}

func (s *service) Verdict(recordingID string) *Verdict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.verdicts[recordingID]; ok {
		return &v
	}
	return nil
}

func (s *service) Reprobe(ctx context.Context, recordingID string) (*Verdict, error) {
	s.mu.RLock()
	rec, ok := s.recordings[recordingID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRecordingNotFound
	}

	if err := s.store.Delete(recordingID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	delete(s.verdicts, recordingID)
	s.mu.Unlock()

	detected, outcome := s.probeRecording(ctx, rec)
	if outcome != history.OutcomeOK {
		return nil, ErrProbeFailed
	}

	v := s.classify(rec, detected)
	s.setVerdict(recordingID, v)
	return &v, nil
}

func (s *service) Recordings() []RecordingStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RecordingStatus, 0, len(s.recordings))
	for id, rec := range s.recordings {
		status := RecordingStatus{Recording: rec}
		if v, ok := s.verdicts[id]; ok {
			vc := v
			status.Verdict = &vc
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Recording.ID < out[j].Recording.ID
	})
	return out
}

func (s *service) VerdictCounts() (tracked, verified, mismatched, unverified int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracked = len(s.recordings)
	for id := range s.recordings {
		v, ok := s.verdicts[id]
		switch {
		case !ok:
			unverified++
		case v.State == StateVerified:
			verified++
		default:
			mismatched++
		}
	}
	return tracked, verified, mismatched, unverified
}
