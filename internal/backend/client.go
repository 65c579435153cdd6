// Package backend is the HTTP client for the notification endpoints of the
// pharmacy backend. Every call takes a Credential so the Authorization
// header is rendered in one place. No call is retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/version"
)

const (
	// DefaultTimeout is applied when the request context has no deadline.
	DefaultTimeout = 15 * time.Second

	PathSaveFCMToken = "/notifications/save-fcm-token/"
	PathUnread       = "/notifications/notifications/unread/"
	PathStats        = "/notifications/notifications/stats/"
	PathMarkAllRead  = "/notifications/notifications/mark-all-read/"

	maxErrorBody = 512
)

// PathUpdate returns the update path of notification id.
func PathUpdate(id int) string {
	return "/notifications/notifications/" + strconv.Itoa(id) + "/update/"
}

// PathDelete returns the delete path of notification id.
func PathDelete(id int) string {
	return "/notifications/notifications/" + strconv.Itoa(id) + "/delete/"
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets errors.Is match ErrBackendRejected.
func (e *StatusError) Unwrap() error { return pnerrors.ErrBackendRejected }

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient defaults to a new http.Client.
	HTTPClient *http.Client
	UserAgent  string
}

// Client talks to the backend.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	userAgent string

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error)
}

// New returns a client for cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		http:      cfg.HTTPClient,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// SetBeforeRequest registers a hook called before each request.
func (c *Client) SetBeforeRequest(hook func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = hook
}

// SetAfterResponse registers a hook called after each request. resp is nil
// when err is set.
func (c *Client) SetAfterResponse(hook func(*http.Request, *http.Response, error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = hook
}

// TokenRegistration is the body of the save-fcm-token call.
type TokenRegistration struct {
	FCMToken   string `json:"fcm_token"`
	UserID     string `json:"user_id,omitempty"`
	DeviceType string `json:"device_type"`
}

// SaveFCMToken registers a push token for the authenticated user.
func (c *Client) SaveFCMToken(ctx context.Context, cred Credential, reg TokenRegistration) error {
	if reg.DeviceType == "" {
		reg.DeviceType = "web"
	}
	return c.do(ctx, cred, http.MethodPost, PathSaveFCMToken, reg, nil)
}

// Unread returns the unread notifications. The endpoint answers either
// with a bare array or with a paginated object.
func (c *Client) Unread(ctx context.Context, cred Credential) ([]notification.Record, error) {
	var raw json.RawMessage
	if err := c.do(ctx, cred, http.MethodGet, PathUnread, nil, &raw); err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

func decodeRecords(raw json.RawMessage) ([]notification.Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []notification.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode unread: %w", err)
		}
		return records, nil
	}
	var page struct {
		Results       []notification.Record `json:"results"`
		Notifications []notification.Record `json:"notifications"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decode unread: %w", err)
	}
	if page.Results != nil {
		return page.Results, nil
	}
	return page.Notifications, nil
}

// Stats returns notification counters.
func (c *Client) Stats(ctx context.Context, cred Credential) (notification.Stats, error) {
	var stats notification.Stats
	err := c.do(ctx, cred, http.MethodGet, PathStats, nil, &stats)
	return stats, err
}

// MarkAllRead marks every notification read.
func (c *Client) MarkAllRead(ctx context.Context, cred Credential) error {
	return c.do(ctx, cred, http.MethodPost, PathMarkAllRead, nil, nil)
}

// MarkRead marks notification id read.
func (c *Client) MarkRead(ctx context.Context, cred Credential, id int) error {
	return c.do(ctx, cred, http.MethodPatch, PathUpdate(id), map[string]bool{"is_read": true}, nil)
}

// Delete removes notification id.
func (c *Client) Delete(ctx context.Context, cred Credential, id int) error {
	return c.do(ctx, cred, http.MethodDelete, PathDelete(id), nil, nil)
}

func (c *Client) do(ctx context.Context, cred Credential, method, path string, body, out any) error {
	if cred.Empty() {
		return fmt.Errorf("%s %s: %w", method, path, pnerrors.ErrNotAuthenticated)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Authorization", cred.Header())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.hookMu.RLock()
	before, after := c.beforeRequest, c.afterResponse
	c.hookMu.RUnlock()
	if before != nil {
		before(req)
	}
	resp, err := c.http.Do(req)
	if after != nil {
		after(req, resp, err)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
