// Package client provides an API client for remote ipfeed management.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"grimm.is/ipfeed/internal/api"
	"grimm.is/ipfeed/internal/brand"
	"grimm.is/ipfeed/internal/notify"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Details string
	Entry   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
	if e.Entry != "" {
		msg += fmt.Sprintf(" %q", e.Entry)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// HTTPClient talks to the ipfeed admin API.
type HTTPClient struct {
	baseURL             string
	httpClient          *http.Client
	expectedFingerprint string
	SeenFingerprint     string
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithFingerprint pins the server certificate by SHA-256 fingerprint (hex).
func WithFingerprint(fp string) ClientOption {
	return func(c *HTTPClient) {
		c.expectedFingerprint = strings.ToLower(strings.ReplaceAll(fp, ":", ""))
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// NewHTTPClient creates a new HTTPClient for the given base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.expectedFingerprint != "" {
		c.httpClient.Transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // verified by fingerprint below
				VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
					if len(rawCerts) == 0 {
						return errors.New("no server certificate")
					}
					hash := sha256.Sum256(rawCerts[0])
					fingerprint := hex.EncodeToString(hash[:])
					c.SeenFingerprint = fingerprint
					if fingerprint != c.expectedFingerprint {
						return fmt.Errorf("certificate fingerprint mismatch: expected %s, got %s", c.expectedFingerprint, fingerprint)
					}
					return nil
				},
			},
		}
	}
	return c
}

// request performs an HTTP request and returns the raw body of a 2xx response.
func (c *HTTPClient) request(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var er api.ErrorResponse
		if json.Unmarshal(respBody, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.Details = er.Details
			apiErr.Entry = er.Entry
		}
		return nil, nil, apiErr
	}
	return respBody, resp.Header, nil
}

// doJSON sends body as JSON and decodes the response into result.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
		contentType = "application/json"
	}

	respBody, _, err := c.request(ctx, method, path, contentType, reqBody)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Status retrieves the pipeline status.
func (c *HTTPClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Entries retrieves the current snapshot.
func (c *HTTPClient) Entries(ctx context.Context) (*api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/entries", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit replaces the list with entries.
func (c *HTTPClient) Submit(ctx context.Context, req api.SubmitRequest) (*api.PublishResponse, error) {
	var resp api.PublishResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/entries", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitList replaces the list with a plain-text list, one entry per line.
// A non-nil base makes the submission fail if the feed moved past it.
func (c *HTTPClient) SubmitList(ctx context.Context, list io.Reader, base *uint64) (*api.PublishResponse, error) {
	path := "/api/entries"
	if base != nil {
		path += "?base_version=" + strconv.FormatUint(*base, 10)
	}
	body, _, err := c.request(ctx, http.MethodPost, path, "text/plain; charset=utf-8", list)
	if err != nil {
		return nil, err
	}
	var resp api.PublishResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Add lists one entry.
func (c *HTTPClient) Add(ctx context.Context, req api.EditRequest) (*api.PublishResponse, error) {
	var resp api.PublishResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/entries/add", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove delists every address covered by one entry.
func (c *HTTPClient) Remove(ctx context.Context, req api.EditRequest) (*api.PublishResponse, error) {
	var resp api.PublishResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/entries/remove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rollback republishes an older version.
func (c *HTTPClient) Rollback(ctx context.Context, req api.RollbackRequest) (*api.PublishResponse, error) {
	var resp api.PublishResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/rollback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Versions lists retained versions.
func (c *HTTPClient) Versions(ctx context.Context) (*api.VersionsResponse, error) {
	var resp api.VersionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/versions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version retrieves one retained snapshot.
func (c *HTTPClient) Version(ctx context.Context, version uint64) (*api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	path := "/api/versions/" + strconv.FormatUint(version, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Feed fetches a rendered feed document. Version 0 means the live feed.
func (c *HTTPClient) Feed(ctx context.Context, version uint64) ([]byte, uint64, error) {
	path := "/feed"
	if version != 0 {
		path += "/" + strconv.FormatUint(version, 10)
	}
	body, header, err := c.request(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, 0, err
	}
	served, _ := strconv.ParseUint(header.Get("X-Feed-Version"), 10, 64)
	return body, served, nil
}

// Diff returns the structured diff between two versions.
func (c *HTTPClient) Diff(ctx context.Context, from, to uint64) (*api.DiffResponse, error) {
	var resp api.DiffResponse
	if err := c.doJSON(ctx, http.MethodGet, diffPath(from, to, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnifiedDiff returns a text diff of the rendered documents.
func (c *HTTPClient) UnifiedDiff(ctx context.Context, from, to uint64) (string, error) {
	body, _, err := c.request(ctx, http.MethodGet, diffPath(from, to, "unified"), "", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func diffPath(from, to uint64, format string) string {
	q := url.Values{}
	q.Set("from", strconv.FormatUint(from, 10))
	q.Set("to", strconv.FormatUint(to, 10))
	if format != "" {
		q.Set("format", format)
	}
	return "/api/diff?" + q.Encode()
}

// AuditArgs mirrors the audit query parameters.
type AuditArgs struct {
	Operation string
	Since     time.Time
	Limit     int
}

// AuditEvent mirrors one audit row.
type AuditEvent struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Operation string         `json:"operation"`
	Batch     string         `json:"batch,omitempty"`
	Version   uint64         `json:"version"`
	Previous  uint64         `json:"previous,omitempty"`
	Added     int            `json:"added"`
	Removed   int            `json:"removed"`
	Checksum  string         `json:"checksum"`
	Details   map[string]any `json:"details,omitempty"`
}

// Audit queries the audit log, newest first.
func (c *HTTPClient) Audit(ctx context.Context, args AuditArgs) ([]AuditEvent, error) {
	q := url.Values{}
	if args.Operation != "" {
		q.Set("operation", args.Operation)
	}
	if !args.Since.IsZero() {
		q.Set("since", args.Since.UTC().Format(time.RFC3339))
	}
	if args.Limit > 0 {
		q.Set("limit", strconv.Itoa(args.Limit))
	}
	path := "/api/audit"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Events []AuditEvent `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Watch streams publish events until ctx is cancelled or the connection
// drops. onStatus may be nil.
func (c *HTTPClient) Watch(ctx context.Context, onStatus func(api.StatusResponse), onPublish func(notify.Event)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/ws"

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		dialer.TLSClientConfig = transport.TLSClientConfig
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg struct {
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		switch msg.Topic {
		case "status":
			var status api.StatusResponse
			if onStatus != nil && json.Unmarshal(msg.Data, &status) == nil {
				onStatus(status)
			}
		case "published":
			var evt notify.Event
			if json.Unmarshal(msg.Data, &evt) == nil {
				onPublish(evt)
			}
		}
	}
}
