// Package tutorialapi is the client of the remote tutorial service: it finds a tutorial page,
// extracts its steps and detects step targets on screenshots.
package tutorialapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/ports"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultCacheSize = 256
	DefaultTimeout   = 60 * time.Second
)

// Client talks to the tutorial service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheSize  int
	cache      *lru.Cache[string, domain.Tutorial]
	logger     *slog.Logger
}

var (
	_ ports.StepSource     = (*Client)(nil)
	_ ports.RegionDetector = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCacheSize sets how many resolved queries are kept.
func WithCacheSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("tutorialapi: base url is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		cacheSize:  DefaultCacheSize,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cache, err := lru.New[string, domain.Tutorial](c.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// APIError is a non-2xx reply of the service.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tutorial service returned %d: %s", e.Status, e.Detail)
}

// Website is the page found for a query.
type Website struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// FindWebsite asks the service for the most relevant tutorial page.
func (c *Client) FindWebsite(ctx context.Context, action, software string) (Website, error) {
	var w Website
	err := c.postJSON(ctx, "/find_website", map[string]string{"action": action, "software": software}, &w)
	if err != nil {
		return Website{}, err
	}
	if w.URL == "" {
		return Website{}, fmt.Errorf("%w: no page for %q", domain.ErrTutorialNotFound, action)
	}
	return w, nil
}

// ExtractContent asks the service for the steps described at url.
// A page that is not a tutorial is reported as domain.ErrTutorialNotFound.
func (c *Client) ExtractContent(ctx context.Context, url string) (domain.Tutorial, error) {
	var raw json.RawMessage
	if err := c.postJSON(ctx, "/extract_content", map[string]string{"url": url}, &raw); err != nil {
		return domain.Tutorial{}, err
	}

	// The service answers with an empty string when the page holds no instructions.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.Tutorial{}, fmt.Errorf("%w: %s is not a tutorial", domain.ErrTutorialNotFound, url)
	}

	var t domain.Tutorial
	if err := json.Unmarshal(trimmed, &t); err != nil {
		return domain.Tutorial{}, fmt.Errorf("malformed extraction reply: %w", err)
	}
	if len(t.Steps) == 0 {
		return domain.Tutorial{}, fmt.Errorf("%w: %s has no steps", domain.ErrTutorialNotFound, url)
	}
	for i := range t.Steps {
		t.Steps[i].Index = i
	}
	return t, nil
}

// ResolveQuery finds a tutorial page and extracts its steps. Results are cached per query.
func (c *Client) ResolveQuery(ctx context.Context, action, software string) (domain.Tutorial, error) {
	key := cacheKey(action, software)
	if t, ok := c.cache.Get(key); ok {
		c.logger.Debug("Tutorial cache hit", "action", action, "software", software)
		return cloneTutorial(t), nil
	}

	site, err := c.FindWebsite(ctx, action, software)
	if err != nil {
		return domain.Tutorial{}, err
	}
	t, err := c.ExtractContent(ctx, site.URL)
	if err != nil {
		return domain.Tutorial{}, err
	}
	if t.Title == "" {
		t.Title = site.Title
	}
	t.Action = action
	t.Software = software

	c.cache.Add(key, t)
	c.logger.Info("Tutorial resolved", "url", site.URL, "steps", len(t.Steps))
	return cloneTutorial(t), nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: detail(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// detail extracts the "detail" field of an error body. It may be a string or a list of
// validation errors; anything else is returned verbatim.
func detail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	return string(e.Detail)
}

func cacheKey(action, software string) string {
	norm := func(s string) string { return strings.Join(strings.Fields(strings.ToLower(s)), " ") }
	return norm(action) + "\x00" + norm(software)
}

func cloneTutorial(t domain.Tutorial) domain.Tutorial {
	t.Steps = append([]domain.Step(nil), t.Steps...)
	return t
}
