package acc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL points at the production Autodesk platform.
	DefaultBaseURL = "https://developer.api.autodesk.com"

	// lineagePrefix decorates entity identifiers in relationship payloads.
	lineagePrefix = "urn:adsk.wipprod:dm.lineage:"

	maxBodySnippet = 512
)

// RetryPolicy bounds the exponential backoff applied to 429/5xx responses.
type RetryPolicy struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries transient failures three times, backing off
// 500ms, 1s, capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   3,
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 2,
		MaxDelay:   8 * time.Second,
	}
}

// Option customises the client configuration.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the platform base URL. Primarily for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryPolicy overrides the default backoff behaviour.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		if policy.Attempts > 0 {
			c.retry = policy
		}
	}
}

// WithRateLimit caps outgoing requests. All workers of all jobs share the
// same limiter so batch exports respect the platform's quota.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// Client is a typed facade over the ACC HTTP API. It owns token attachment,
// refresh-and-retry on 401, bounded backoff on transient failures, and rate
// limiting. All methods translate failures into *Error values carrying a Kind.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	limiter    *rate.Limiter
	retry      RetryPolicy
	logger     *slog.Logger
}

// New constructs a Client around the given token source.
func New(tokens TokenSource, options ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("acc: token source is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		tokens:     tokens,
		retry:      DefaultRetryPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Project fetches project metadata, used for display names in artifacts.
func (c *Client) Project(ctx context.Context, projectID string) (ProjectRecord, error) {
	pid := CleanProjectID(projectID)
	body, err := c.get(ctx, "project", fmt.Sprintf("%s/project/v1/projects/%s", c.baseURL, url.PathEscape(pid)))
	if err != nil {
		return ProjectRecord{}, err
	}
	var payload struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ProjectRecord{}, &Error{Kind: KindRemote, Op: "project", Err: fmt.Errorf("decode response: %w", err)}
	}
	return ProjectRecord{ID: payload.Data.ID, Name: payload.Data.Attributes.Name}, nil
}

// Forms lists every form in the project.
func (c *Client) Forms(ctx context.Context, projectID string) ([]FormRecord, error) {
	pid := CleanProjectID(projectID)
	body, err := c.get(ctx, "forms", fmt.Sprintf("%s/construction/forms/v1/projects/%s/forms", c.baseURL, url.PathEscape(pid)))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []FormRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Kind: KindRemote, Op: "forms", Err: fmt.Errorf("decode response: %w", err)}
	}
	return payload.Data, nil
}

// Form fetches a single form by identifier. The Forms API exposes forms
// through the project listing, so the client selects from it; an identifier
// absent from the listing surfaces KindNotFound.
func (c *Client) Form(ctx context.Context, projectID, formID string) (FormRecord, error) {
	forms, err := c.Forms(ctx, projectID)
	if err != nil {
		return FormRecord{}, err
	}
	for _, form := range forms {
		if form.ID == formID {
			return form, nil
		}
	}
	return FormRecord{}, &Error{Kind: KindNotFound, Op: "form", Err: fmt.Errorf("form %q not in project listing", formID)}
}

// Relationships returns the relationships that involve the given form. The
// relationship service is queried once per call and filtered client-side,
// with lineage URN prefixes stripped from entity identifiers.
func (c *Client) Relationships(ctx context.Context, projectID, formID string) ([]RelationshipRecord, error) {
	pid := CleanProjectID(projectID)
	endpoint := fmt.Sprintf("%s/bim360/relationship/v2/containers/%s/relationships:search?pageLimit=200", c.baseURL, url.PathEscape(pid))
	body, err := c.get(ctx, "relationships", endpoint)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Relationships []RelationshipRecord `json:"relationships"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Kind: KindRemote, Op: "relationships", Err: fmt.Errorf("decode response: %w", err)}
	}

	var matched []RelationshipRecord
	for _, rel := range payload.Relationships {
		involved := false
		cleaned := make([]RelationshipEntity, 0, len(rel.Entities))
		for _, entity := range rel.Entities {
			entity.ID = CleanEntityID(entity.ID)
			cleaned = append(cleaned, entity)
			if entity.Type == "form" && entity.ID == formID {
				involved = true
			}
		}
		if involved {
			rel.Entities = cleaned
			matched = append(matched, rel)
		}
	}
	return matched, nil
}

// Asset fetches a single asset by identifier from the Assets V2 listing.
func (c *Client) Asset(ctx context.Context, projectID, assetID string) (AssetRecord, error) {
	pid := CleanProjectID(projectID)
	body, err := c.get(ctx, "asset", fmt.Sprintf("%s/construction/assets/v2/projects/%s/assets", c.baseURL, url.PathEscape(pid)))
	if err != nil {
		return AssetRecord{}, err
	}
	var payload struct {
		Results []AssetRecord `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return AssetRecord{}, &Error{Kind: KindRemote, Op: "asset", Err: fmt.Errorf("decode response: %w", err)}
	}
	for _, asset := range payload.Results {
		if asset.ID == assetID {
			return asset, nil
		}
	}
	return AssetRecord{}, &Error{Kind: KindNotFound, Op: "asset", Err: fmt.Errorf("asset %q not in project listing", assetID)}
}

// AssetContent downloads binary content from a platform-provided URL, such as
// a signed attachment location.
func (c *Client) AssetContent(ctx context.Context, contentURL string) ([]byte, error) {
	if strings.TrimSpace(contentURL) == "" {
		return nil, &Error{Kind: KindNotFound, Op: "asset_content", Err: errors.New("empty content URL")}
	}
	target := contentURL
	if strings.HasPrefix(target, "/") {
		target = c.baseURL + target
	}
	return c.get(ctx, "asset_content", target)
}

// CleanProjectID strips the "b." account prefix some platform surfaces
// prepend to project identifiers.
func CleanProjectID(projectID string) string {
	return strings.TrimPrefix(projectID, "b.")
}

// CleanEntityID strips the lineage URN wrapper from relationship entity
// identifiers.
func CleanEntityID(entityID string) string {
	if strings.HasPrefix(entityID, lineagePrefix) {
		parts := strings.Split(entityID, ":")
		return parts[len(parts)-1]
	}
	return entityID
}

// get performs an authenticated GET with retry, refresh and rate limiting.
func (c *Client) get(ctx context.Context, op, endpoint string) ([]byte, error) {
	var lastErr error
	refreshed := false

	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt-1); err != nil {
				return nil, &Error{Kind: KindUnavailable, Op: op, Err: err}
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &Error{Kind: KindUnavailable, Op: op, Err: err}
			}
		}

		token, err := c.bearer(ctx)
		if err != nil {
			return nil, &Error{Kind: KindUnauthorized, Op: op, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, &Error{Kind: KindUnknown, Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Kind: KindUnavailable, Op: op, Err: ctx.Err()}
			}
			lastErr = err
			c.logger.Warn("acc request failed, retrying", "op", op, "attempt", attempt+1, "error", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return nil, &Error{Kind: KindUnknown, Op: op, Err: readErr}
			}
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return nil, &Error{Kind: KindUnauthorized, Op: op, Status: resp.StatusCode, Body: snippet(body)}
			}
			refreshed = true
			if _, err := c.tokens.Refresh(ctx, token); err != nil {
				return nil, &Error{Kind: KindUnauthorized, Op: op, Status: resp.StatusCode, Err: err}
			}
			// Retry immediately with the refreshed token; the 401 does not
			// consume a backoff attempt.
			attempt--
			continue

		case resp.StatusCode == http.StatusNotFound:
			return nil, &Error{Kind: KindNotFound, Op: op, Status: resp.StatusCode, Body: snippet(body)}

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.logger.Warn("acc transient failure, retrying", "op", op, "status", resp.StatusCode, "attempt", attempt+1)
			continue

		default:
			return nil, &Error{Kind: KindRemote, Op: op, Status: resp.StatusCode, Body: snippet(body)}
		}
	}

	return nil, &Error{Kind: KindUnavailable, Op: op, Err: lastErr}
}

// bearer returns a valid token, refreshing when the source reports expiry.
func (c *Client) bearer(ctx context.Context) (string, error) {
	token, err := c.tokens.AccessToken(ctx)
	if errors.Is(err, ErrTokenExpired) {
		return c.tokens.Refresh(ctx, "")
	}
	return token, err
}

func (c *Client) sleep(ctx context.Context, exhausted int) error {
	delay := time.Duration(float64(c.retry.BaseDelay) * pow(c.retry.Multiplier, exhausted))
	if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
		delay = c.retry.MaxDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodySnippet {
		return text[:maxBodySnippet]
	}
	return text
}
