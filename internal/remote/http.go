package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/metrics"
)

// httpDoer is the subset of *http.Client used here.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPClient is the REST Client. It also implements Authorizer.
type HTTPClient struct {
	endpoint *url.URL
	token    string
	hc       httpDoer

	mu     sync.Mutex
	groups []string
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc httpDoer) Option {
	return func(c *HTTPClient) { c.hc = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.hc = &http.Client{Timeout: d} }
}

// NewHTTPClient returns a client for the service at endpoint. HTTP is
// assumed when no scheme is given.
func NewHTTPClient(endpoint string, opts ...Option) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("remote endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	ep, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	c := &HTTPClient{endpoint: ep, hc: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateProject implements Client.
func (c *HTTPClient) CreateProject(ctx context.Context, p ProjectPayload) (ProjectResponse, error) {
	var out ProjectResponse
	err := c.do(ctx, http.MethodPost, "/api/projects", p, &out)
	return out, err
}

// UpdateProject implements Client.
func (c *HTTPClient) UpdateProject(ctx context.Context, p ProjectPayload) (ProjectResponse, error) {
	var out ProjectResponse
	err := c.do(ctx, http.MethodPatch, "/api/projects", p, &out)
	return out, err
}

// DeleteProject implements Client.
func (c *HTTPClient) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(projectID), nil, nil)
}

type tokenUpload struct {
	Corpus domain.Corpus  `json:"corpus"`
	Tokens []domain.Token `json:"tokens"`
}

// UploadTokens implements Client.
func (c *HTTPClient) UploadTokens(ctx context.Context, projectID string, corpus domain.Corpus, tokens []domain.Token) error {
	err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(projectID)+"/tokens",
		tokenUpload{Corpus: corpus, Tokens: tokens}, nil)
	if err == nil {
		metrics.TokensUploadedTotal.Add(float64(len(tokens)))
	}
	return err
}

type linkList struct {
	Links []domain.Link `json:"links"`
}

// PullLinks implements Client. Legacy token prefixes in the response are
// left for the store to strip.
func (c *HTTPClient) PullLinks(ctx context.Context, projectID string) ([]domain.Link, error) {
	var out linkList
	if err := c.do(ctx, http.MethodGet,
		"/api/projects/"+url.PathEscape(projectID)+"/alignment_links", nil, &out); err != nil {
		return nil, err
	}
	if out.Links == nil {
		out.Links = []domain.Link{}
	}
	return out.Links, nil
}

// mutation is the wire form of one journal entry.
type mutation struct {
	ID        string       `json:"id"`
	Operation string       `json:"op"`
	LinkID    string       `json:"link_id"`
	Link      *domain.Link `json:"link,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

type mutationBatch struct {
	Mutations []mutation `json:"mutations"`
}

func newMutationBatch(entries []domain.JournalEntry) mutationBatch {
	b := mutationBatch{Mutations: make([]mutation, 0, len(entries))}
	for _, e := range entries {
		m := mutation{
			ID:        e.ID,
			Operation: string(e.Operation),
			LinkID:    e.LinkID,
			Timestamp: e.Timestamp.UnixMilli(),
		}
		if e.Link != nil {
			// Text is derived per store; only membership travels.
			m.Link = &domain.Link{ID: e.Link.ID, Sources: e.Link.Sources, Targets: e.Link.Targets}
		}
		b.Mutations = append(b.Mutations, m)
	}
	return b
}

// PushLinkMutations implements Client.
func (c *HTTPClient) PushLinkMutations(ctx context.Context, projectID string, entries []domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch,
		"/api/projects/"+url.PathEscape(projectID)+"/alignment_links", newMutationBatch(entries), nil)
}

type permissions struct {
	Groups []string `json:"groups"`
}

// RefreshPermissions implements Authorizer.
func (c *HTTPClient) RefreshPermissions(ctx context.Context) error {
	var out permissions
	if err := c.do(ctx, http.MethodGet, "/api/permissions", nil, &out); err != nil {
		return err
	}
	c.mu.Lock()
	c.groups = out.Groups
	c.mu.Unlock()
	return nil
}

// Groups returns the claims from the last RefreshPermissions.
func (c *HTTPClient) Groups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.groups...)
}

// do sends in as JSON and decodes the response into out when both are set.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) (err error) {
	status := "error"
	defer func() { metrics.RemoteRequestsTotal.WithLabelValues(method, status).Inc() }()

	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(in); err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Debug("remote request rejected",
			"method", method, "path", path, "status", resp.StatusCode, "body", string(detail))
		return statusError(method, path, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}
