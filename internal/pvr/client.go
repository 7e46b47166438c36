package pvr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	userAgent = "hoarderwatch v1.0"

	defaultHTTPTimeout = 30 * time.Second

	// Session management
	sessionValidDuration   = 24 * time.Hour
	sessionRefreshDuration = 23 * time.Hour
)

var _ Catalog = (*Client)(nil)

// Client talks to the PVR server's JSON API.
type Client struct {
	baseURL    string
	pin        string
	httpClient *http.Client

	// Session management
	mu         sync.RWMutex
	loginMu    sync.Mutex // serializes logins; acquired before mu
	sessionID  string
	sessionExp time.Time
}

// NewClient creates a new PVR API client.
func NewClient(baseURL, pin string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		pin:     pin,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListCompletedRecordings returns all recordings the server reports as
// finished, with their scheduled duration and file metadata.
func (c *Client) ListCompletedRecordings(ctx context.Context) ([]Recording, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/recordings?status=ready", c.baseURL)

	var result RecordingListResponse
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("recording list failed: %w", err)
	}

	recordings := make([]Recording, 0, len(result.Recordings))
	for _, e := range result.Recordings {
		recordings = append(recordings, Recording{
			ID:              strconv.Itoa(e.ID),
			Title:           e.Name,
			ExpectedSeconds: e.DurationSeconds,
			FileExtension:   extensionOf(e.FileName),
			FileSizeBytes:   e.FileSize,
			Completed:       e.Status == "ready",
		})
	}
	return recordings, nil
}

// ResolveStreamTarget returns the authenticated stream endpoint for a
// recording. The session key travels as a header so probe URLs stay stable
// across re-logins.
func (c *Client) ResolveStreamTarget(ctx context.Context, recordingID string) (*StreamTarget, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	c.mu.RLock()
	sid := c.sessionID
	c.mu.RUnlock()

	header := make(http.Header)
	header.Set("User-Agent", userAgent)
	header.Set("X-Session", sid)

	return &StreamTarget{
		URL:    fmt.Sprintf("%s/stream/recording/%s", c.baseURL, url.PathEscape(recordingID)),
		Header: header,
	}, nil
}

// ensureSession makes sure we hold a valid session key.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.RLock()
	if c.sessionID != "" && time.Now().Before(c.sessionExp) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	return c.login(ctx)
}

// login authenticates with the configured PIN and obtains a session key.
func (c *Client) login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	// Double-check after acquiring the login lock
	c.mu.RLock()
	valid := c.sessionID != "" && time.Now().Before(c.sessionExp)
	c.mu.RUnlock()
	if valid {
		return nil
	}

	// Open servers accept anonymous sessions
	if c.pin == "" {
		c.mu.Lock()
		c.sessionID = "anonymous"
		c.sessionExp = time.Now().Add(sessionValidDuration)
		c.mu.Unlock()
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/session/login?pin=%s", c.baseURL, url.QueryEscape(c.pin))

	var sess SessionResponse
	if err := c.get(ctx, endpoint, &sess); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if sess.SID == "" {
		return fmt.Errorf("no session key in login response")
	}

	c.mu.Lock()
	c.sessionID = sess.SID
	c.sessionExp = time.Now().Add(sessionRefreshDuration)
	c.mu.Unlock()
	return nil
}

// get performs a GET request
func (c *Client) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// setHeaders sets common headers
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	sid := c.sessionID
	c.mu.RUnlock()

	if sid != "" && sid != "anonymous" {
		req.Header.Set("X-Session", sid)
	}
}

// handleResponse processes the HTTP response
func (c *Client) handleResponse(resp *http.Response, result interface{}) error {
	if resp.StatusCode == http.StatusUnauthorized {
		// Clear session to force re-login
		c.mu.Lock()
		c.sessionID = ""
		c.sessionExp = time.Time{}
		c.mu.Unlock()
		return fmt.Errorf("unauthorized - invalid PIN or expired session")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// extensionOf returns the lowercase extension of a file name without the dot.
func extensionOf(name string) string {
	ext := strings.ToLower(path.Ext(name))
	return strings.TrimPrefix(ext, ".")
}
