package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// headFetchBytes/tailFetchBytes size the slices handed to the
	// transport-stream prober
	headFetchBytes = 2 * 1024 * 1024
	tailFetchBytes = 2 * 1024 * 1024

	// headerProbeBytes is enough for MP4/MKV header metadata
	headerProbeBytes = 64 * 1024

	// DefaultMinProbeSize is the smallest file worth probing; anything
	// smaller cannot hold both a usable head and tail window.
	DefaultMinProbeSize = 4 * 1024 * 1024

	defaultFetchTimeout = 45 * time.Second
)

// ErrUnprobeableSize means the resource's total size could not be determined.
var ErrUnprobeableSize = errors.New("resource size unavailable")

// Target identifies a probeable stream: its resolved URL plus whatever auth
// headers the PVR session requires.
type Target struct {
	URL    string
	Header http.Header
}

// Fetcher issues size discovery and small ranged reads against a stream
// endpoint. It tolerates servers that ignore Range and return the full body.
type Fetcher struct {
	client *http.Client
	log    *slog.Logger

	// OnFetched, when set, is called with the byte count of every range
	// body read (instrumentation hook).
	OnFetched func(n int64)
}

// NewFetcher creates a range fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		log:    slog.With("component", "range-fetcher"),
	}
}

// TotalSize discovers the resource's total byte size. It tries a HEAD request
// first; some PVR streamers omit Content-Length on HEAD, so it falls back to
// a one-byte ranged GET and parses the Content-Range total.
func (f *Fetcher) TotalSize(ctx context.Context, t Target) (int64, error) {
	req, err := f.newRequest(ctx, http.MethodHead, t)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch resource size: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("size request returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		return resp.ContentLength, nil
	}

	return f.sizeFromContentRange(ctx, t)
}

// sizeFromContentRange requests byte 0 only and recovers the total from the
// "bytes 0-0/<total>" trailer of the Content-Range header.
func (f *Fetcher) sizeFromContentRange(ctx context.Context, t Target) (int64, error) {
	req, err := f.newRequest(ctx, http.MethodGet, t)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch content range: %w", err)
	}
	defer resp.Body.Close()
	io.CopyN(io.Discard, resp.Body, 1)

	if resp.StatusCode != http.StatusPartialContent {
		return 0, ErrUnprobeableSize
	}

	cr := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return 0, ErrUnprobeableSize
	}
	total, err := strconv.ParseInt(cr[idx+1:], 10, 64)
	if err != nil || total <= 0 {
		return 0, ErrUnprobeableSize
	}
	return total, nil
}

// FetchRange reads bytes [start, end] inclusive. A 206 response confirms the
// server honors ranges; a 200 means it returned the whole body regardless, in
// which case supportsRange is false and data holds only the leading
// end-start+1 bytes of whatever came back (the body is closed early, the
// recording is never downloaded in full).
func (f *Fetcher) FetchRange(ctx context.Context, t Target, start, end int64) (data []byte, supportsRange bool, err error) {
	req, err := f.newRequest(ctx, http.MethodGet, t)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch range %d-%d: %w", start, end, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		supportsRange = true
	case http.StatusOK:
		supportsRange = false
		f.log.Debug("server ignored range request", "url", t.URL)
	default:
		return nil, false, fmt.Errorf("range request returned status %d", resp.StatusCode)
	}

	want := end - start + 1
	data, err = io.ReadAll(io.LimitReader(resp.Body, want))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read range body: %w", err)
	}
	if f.OnFetched != nil {
		f.OnFetched(int64(len(data)))
	}
	return data, supportsRange, nil
}

func (f *Fetcher) newRequest(ctx context.Context, method string, t Target) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
