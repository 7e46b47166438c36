package verify

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shapedtime/hoarderwatch/internal/cache"
	"github.com/shapedtime/hoarderwatch/internal/config"
	"github.com/shapedtime/hoarderwatch/internal/probe"
	"github.com/shapedtime/hoarderwatch/internal/pvr"
)

// fakeResolver points every recording at the same test server.
type fakeResolver struct {
	url string
}

func (r *fakeResolver) ResolveStreamTarget(ctx context.Context, recordingID string) (*pvr.StreamTarget, error) {
	return &pvr.StreamTarget{URL: r.url, Header: make(http.Header)}, nil
}

func testVerifyConfig() config.VerifyConfig {
	return config.VerifyConfig{
		Concurrency:      2,
		MinProbeSize:     1,
		MismatchRatio:    0.9,
		CompleteFileRate: 200_000,
	}
}

// makePESPacket builds one transport packet with a PES header carrying pts.
func makePESPacket(pts int64) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[1] = 0x40
	pkt[3] = 0x10

	pes := pkt[4:]
	pes[2] = 0x01
	pes[3] = 0xE0
	pes[6] = 0x80
	pes[7] = 0x80
	pes[8] = 5
	pes[9] = 0x21 | byte(pts>>30&0x07)<<1
	pes[10] = byte(pts >> 22)
	pes[11] = byte(pts>>15&0x7F)<<1 | 1
	pes[12] = byte(pts >> 7)
	pes[13] = byte(pts&0x7F)<<1 | 1
	return pkt
}

// tsRecording returns a small synthetic transport stream spanning the given
// number of seconds.
func tsRecording(seconds int64) []byte {
	var buf bytes.Buffer
	buf.Write(makePESPacket(0))
	buf.Write(makePESPacket(seconds * 90000))
	return buf.Bytes()
}

// countingServer serves data with Range support and counts requests.
func countingServer(data []byte, requests *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.ServeContent(w, r, "recording.ts", time.Time{}, bytes.NewReader(data))
	}))
}

func newTestService(url string, store cache.Store, cfg config.VerifyConfig) Service {
	fetcher := probe.NewFetcher(5 * time.Second)
	return NewService(&fakeResolver{url: url}, fetcher, store, cfg)
}

func TestClassify(t *testing.T) {
	s := &service{cfg: testVerifyConfig()}

	tests := []struct {
		name     string
		expected int64
		detected int64
		fileSize int64
		want     State
	}{
		{"exact match", 1800, 1800, 0, StateVerified},
		{"half duration", 1800, 900, 0, StateMismatch},
		{"94 percent passes threshold", 1800, 1700, 0, StateVerified},
		{"just under threshold", 1800, 1619, 0, StateMismatch},
		{"longer than expected", 1800, 2000, 0, StateVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := pvr.Recording{ID: "1", ExpectedSeconds: tt.expected, FileSizeBytes: tt.fileSize}
			v := s.classify(rec, tt.detected)
			if v.State != tt.want {
				t.Errorf("classify() state = %v, want %v", v.State, tt.want)
			}
			if v.ExpectedSeconds != tt.expected || v.DetectedSeconds != tt.detected {
				t.Errorf("classify() = (%d, %d), want (%d, %d)",
					v.ExpectedSeconds, v.DetectedSeconds, tt.expected, tt.detected)
			}
		})
	}
}

func TestClassifyMismatchRefinement(t *testing.T) {
	s := &service{cfg: testVerifyConfig()}

	// 1800s expected at 250 kB/s: big enough to look complete
	rec := pvr.Recording{ID: "1", ExpectedSeconds: 1800, FileSizeBytes: 1800 * 250_000}
	v := s.classify(rec, 900)
	if v.State != StateMismatch {
		t.Fatalf("classify() state = %v, want mismatch", v.State)
	}
	if !v.LikelyComplete {
		t.Error("LikelyComplete = false, want true for high bytes-per-second")
	}
	if v.Label() != "file looks complete, playback may desync" {
		t.Errorf("Label() = %q", v.Label())
	}

	// Sparse file: a genuine truncation
	rec.FileSizeBytes = 1800 * 50_000
	v = s.classify(rec, 900)
	if v.LikelyComplete {
		t.Error("LikelyComplete = true, want false for low bytes-per-second")
	}
	if v.Label() != "recording appears truncated" {
		t.Errorf("Label() = %q", v.Label())
	}
}

func TestRunPassVerifiesRecording(t *testing.T) {
	var requests atomic.Int64
	srv := countingServer(tsRecording(1800), &requests)
	defer srv.Close()

	store := cache.NewMemoryStore()
	svc := newTestService(srv.URL, store, testVerifyConfig())

	rec := pvr.Recording{ID: "42", Title: "News", ExpectedSeconds: 1800, Completed: true}
	stats := svc.RunPass(context.Background(), []pvr.Recording{rec})

	if stats.Probed != 1 {
		t.Errorf("stats.Probed = %d, want 1", stats.Probed)
	}

	v := svc.Verdict("42")
	if v == nil {
		t.Fatal("Verdict() = nil, want a verdict")
	}
	if v.State != StateVerified {
		t.Errorf("verdict state = %v, want verified", v.State)
	}
	if v.DetectedSeconds != 1800 {
		t.Errorf("detected = %d, want 1800", v.DetectedSeconds)
	}

	seconds, ok, err := store.Get("42")
	if err != nil || !ok {
		t.Fatalf("cache entry missing: ok=%v err=%v", ok, err)
	}
	if seconds != 1800 {
		t.Errorf("cached seconds = %d, want 1800", seconds)
	}
}

func TestRunPassIdempotent(t *testing.T) {
	var requests atomic.Int64
	srv := countingServer(tsRecording(1800), &requests)
	defer srv.Close()

	store := cache.NewMemoryStore()
	svc := newTestService(srv.URL, store, testVerifyConfig())

	rec := pvr.Recording{ID: "42", ExpectedSeconds: 1800, Completed: true}

	svc.RunPass(context.Background(), []pvr.Recording{rec})
	if requests.Load() == 0 {
		t.Fatal("first pass issued no requests")
	}
	firstVerdict := svc.Verdict("42")

	requests.Store(0)
	stats := svc.RunPass(context.Background(), []pvr.Recording{rec})

	if requests.Load() != 0 {
		t.Errorf("second pass issued %d requests, want 0", requests.Load())
	}
	if stats.CacheHits != 1 {
		t.Errorf("stats.CacheHits = %d, want 1", stats.CacheHits)
	}

	secondVerdict := svc.Verdict("42")
	if secondVerdict == nil || *secondVerdict != *firstVerdict {
		t.Errorf("second verdict = %+v, want %+v", secondVerdict, firstVerdict)
	}
}

func TestRunPassEligibility(t *testing.T) {
	var requests atomic.Int64
	srv := countingServer(tsRecording(1800), &requests)
	defer srv.Close()

	svc := newTestService(srv.URL, cache.NewMemoryStore(), testVerifyConfig())

	recordings := []pvr.Recording{
		{ID: "1", ExpectedSeconds: 1800, Completed: false}, // still recording
		{ID: "2", ExpectedSeconds: 0, Completed: true},     // no expected duration
	}
	stats := svc.RunPass(context.Background(), recordings)

	if stats.Eligible != 0 {
		t.Errorf("stats.Eligible = %d, want 0", stats.Eligible)
	}
	if requests.Load() != 0 {
		t.Errorf("ineligible recordings caused %d requests, want 0", requests.Load())
	}
	if v := svc.Verdict("1"); v != nil {
		t.Errorf("Verdict(incomplete) = %+v, want nil", v)
	}
}

func TestRunPassMalformedStaysUnverified(t *testing.T) {
	// Garbage bytes: the prober finds nothing and the recording stays
	// unverified with no cache write
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "recording.ts", time.Time{}, bytes.NewReader(bytes.Repeat([]byte{0xAB}, 2048)))
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	svc := newTestService(srv.URL, store, testVerifyConfig())

	rec := pvr.Recording{ID: "7", ExpectedSeconds: 1800, Completed: true}
	stats := svc.RunPass(context.Background(), []pvr.Recording{rec})

	if stats.Failed != 1 {
		t.Errorf("stats.Failed = %d, want 1", stats.Failed)
	}
	if v := svc.Verdict("7"); v != nil {
		t.Errorf("Verdict() = %+v, want nil", v)
	}
	if _, ok, _ := store.Get("7"); ok {
		t.Error("malformed probe must not write to the cache")
	}
}

func TestRunPassSkipsTinyFiles(t *testing.T) {
	srv := countingServer(tsRecording(1800), new(atomic.Int64))
	defer srv.Close()

	cfg := testVerifyConfig()
	cfg.MinProbeSize = 4 * 1024 * 1024 // larger than the test stream

	store := cache.NewMemoryStore()
	svc := newTestService(srv.URL, store, cfg)

	rec := pvr.Recording{ID: "9", ExpectedSeconds: 1800, Completed: true}
	stats := svc.RunPass(context.Background(), []pvr.Recording{rec})

	if stats.Skipped != 1 {
		t.Errorf("stats.Skipped = %d, want 1", stats.Skipped)
	}
	if v := svc.Verdict("9"); v != nil {
		t.Errorf("Verdict() = %+v, want nil", v)
	}
	if _, ok, _ := store.Get("9"); ok {
		t.Error("skipped probe must not write to the cache")
	}
}

func TestReprobe(t *testing.T) {
	var requests atomic.Int64
	srv := countingServer(tsRecording(900), &requests)
	defer srv.Close()

	store := cache.NewMemoryStore()
	svc := newTestService(srv.URL, store, testVerifyConfig())

	// Seed a stale cache entry, as if the file was probed before being
	// repaired server-side
	store.Set("42", 300)

	rec := pvr.Recording{ID: "42", ExpectedSeconds: 900, Completed: true}
	svc.RunPass(context.Background(), []pvr.Recording{rec})

	v := svc.Verdict("42")
	if v == nil || v.State != StateMismatch {
		t.Fatalf("verdict = %+v, want mismatch from stale cache", v)
	}

	v, err := svc.Reprobe(context.Background(), "42")
	if err != nil {
		t.Fatalf("Reprobe() error = %v", err)
	}
	if v.State != StateVerified {
		t.Errorf("reprobe verdict = %v, want verified", v.State)
	}
	if seconds, _, _ := store.Get("42"); seconds != 900 {
		t.Errorf("cached seconds after reprobe = %d, want 900", seconds)
	}
}

func TestReprobeUnknownRecording(t *testing.T) {
	svc := newTestService("http://127.0.0.1:0", cache.NewMemoryStore(), testVerifyConfig())

	if _, err := svc.Reprobe(context.Background(), "nope"); err != ErrRecordingNotFound {
		t.Errorf("Reprobe() error = %v, want ErrRecordingNotFound", err)
	}
}

func TestVerdictCounts(t *testing.T) {
	var requests atomic.Int64
	srv := countingServer(tsRecording(900), &requests)
	defer srv.Close()

	store := cache.NewMemoryStore()
	store.Set("short", 300) // cached mismatch
	svc := newTestService(srv.URL, store, testVerifyConfig())

	recordings := []pvr.Recording{
		{ID: "ok", ExpectedSeconds: 900, Completed: true},
		{ID: "short", ExpectedSeconds: 900, Completed: true},
	}
	svc.RunPass(context.Background(), recordings)

	tracked, verified, mismatched, unverified := svc.VerdictCounts()
	if tracked != 2 || verified != 1 || mismatched != 1 || unverified != 0 {
		t.Errorf("VerdictCounts() = (%d, %d, %d, %d), want (2, 1, 1, 0)",
			tracked, verified, mismatched, unverified)
	}
}
