package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/five82/groupsync/internal/schedule"
)

// ScheduleService is the command/query surface of the external scheduling
// service. It is implemented by *Client and can be faked in tests.
type ScheduleService interface {
	Enable(ctx context.Context, scope schedule.Scope, preset schedule.Preset) (*Countdown, error)
	Disable(ctx context.Context, scope schedule.Scope) error
	RunNow(ctx context.Context) error
	FetchCountdown(ctx context.Context, scope schedule.Scope) (Countdown, error)
	FetchCountdowns(ctx context.Context) ([]Countdown, error)
	FetchEntities(ctx context.Context) ([]Entity, error)
}

// Ensure Client implements ScheduleService at compile time.
var _ ScheduleService = (*Client)(nil)

// Client talks to the scheduling service HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	token     string
	timezone  string
	userAgent string
}

// Options configure a Client. Zero values select defaults.
type Options struct {
	BaseURL      string
	Token        string
	Timezone     string // IANA zone sent as x-timezone; defaults to the local zone
	RequestRate  float64
	RequestBurst int
	Timeout      time.Duration
}

const (
	defaultBaseURL   = "127.0.0.1:8080"
	defaultUserAgent = "groupsync/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
)

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	limit := rate.Inf
	if opts.RequestRate > 0 {
		limit = rate.Limit(opts.RequestRate)
	}
	burst := opts.RequestBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		limiter:   rate.NewLimiter(limit, burst),
		token:     strings.TrimSpace(opts.Token),
		timezone:  resolveTimezone(opts.Timezone),
		userAgent: defaultUserAgent,
	}, nil
}

// Enable submits preset for scope. The returned countdown is nil when the
// server did not embed one.
func (c *Client) Enable(ctx context.Context, scope schedule.Scope, preset schedule.Preset) (*Countdown, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("enable: invalid scope %q", scope.Key())
	}
	rel := &url.URL{Path: "/api/schedule/global"}
	if !scope.IsGlobal() {
		const prefix = "/api/schedule/entity/"
		rel = &url.URL{Path: prefix + scope.EntityID, RawPath: prefix + url.PathEscape(scope.EntityID)}
	}
	var payload EnableResponse
	if err := c.doURL(ctx, http.MethodPut, rel, preset.Normalize(), &payload); err != nil {
		return nil, err
	}
	return payload.Countdown, nil
}

// Disable stops the schedule of scope. The server only acknowledges.
func (c *Client) Disable(ctx context.Context, scope schedule.Scope) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if !scope.Valid() {
		return fmt.Errorf("disable: invalid scope %q", scope.Key())
	}
	body := DisableRequest{Scope: scope.Kind.String(), EntityID: scope.EntityID}
	return c.do(ctx, http.MethodPost, "/api/schedule/disable", body, nil)
}

// RunNow asks the service to run the synchronization job immediately.
func (c *Client) RunNow(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodPost, "/api/schedule/run", nil, nil)
}

// FetchCountdown retrieves the countdown of a single scope.
func (c *Client) FetchCountdown(ctx context.Context, scope schedule.Scope) (Countdown, error) {
	if c == nil {
		return Countdown{}, fmt.Errorf("client is nil")
	}
	if !scope.Valid() {
		return Countdown{}, fmt.Errorf("countdown: invalid scope %q", scope.Key())
	}
	values := url.Values{}
	values.Set("scope", scope.Kind.String())
	if !scope.IsGlobal() {
		values.Set("entityId", scope.EntityID)
	}
	rel := &url.URL{Path: "/api/schedule/countdown", RawQuery: values.Encode()}
	var payload Countdown
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return Countdown{}, err
	}
	return payload, nil
}

// FetchCountdowns retrieves one countdown per currently enabled schedule.
func (c *Client) FetchCountdowns(ctx context.Context) ([]Countdown, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []Countdown
	if err := c.do(ctx, http.MethodGet, "/api/schedule/countdown", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchEntities lists the entities that can own a per-entity schedule.
func (c *Client) FetchEntities(ctx context.Context) ([]Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []Entity
	if err := c.do(ctx, http.MethodGet, "/api/entities", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.Code)
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == http.StatusUnauthorized
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("x-timezone", c.timezone)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return statusError(method, rel.Path, resp)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	serr := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		serr.Message = strings.TrimSpace(body.Message)
		if serr.Message == "" {
			serr.Message = strings.TrimSpace(body.Error)
		}
	}
	return serr
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// resolveTimezone picks the zone name sent with each request. Legacy aliases
// the service does not recognize are mapped to their canonical names.
func resolveTimezone(name string) string {
	tz := strings.TrimSpace(name)
	if tz == "" {
		tz = time.Local.String()
	}
	if tz == "" || tz == "Local" {
		tz = "UTC"
	}
	if tz == "Asia/Calcutta" {
		tz = "Asia/Kolkata"
	}
	return tz
}
