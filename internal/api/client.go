// Package api is the HTTP client for the world-data backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/worldboard/internal/logging"
	"github.com/verte-zerg/worldboard/internal/model"
)

const (
	tokenPath         = "/token/"
	filterOptionsPath = "/filter-options/"
	worldDataPath     = "/world-data/"

	// DefaultBaseURL is used when nothing else is configured.
	DefaultBaseURL = "http://localhost:8000/api"
)

// TokenSource supplies the bearer token attached to outgoing calls.
type TokenSource interface {
	Token() string
}

// Client issues the three backend calls.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets a per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New returns a Client for baseURL. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access string `json:"access"`
}

// Authenticate exchanges credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(tokenRequest{Username: username, Password: password})
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, tokenPath, nil, bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var payload tokenResponse
	if status, err := c.do(req, &payload); err != nil {
		return "", &AuthError{Status: status, Err: err}
	}
	if payload.Access == "" {
		return "", &AuthError{Err: fmt.Errorf("missing access token in response")}
	}
	return payload.Access, nil
}

// GetFilterOptions fetches the distinct countries and the year range.
func (c *Client) GetFilterOptions(ctx context.Context) (model.FilterOptions, error) {
	req, err := c.newRequest(ctx, http.MethodGet, filterOptionsPath, nil, http.NoBody)
	if err != nil {
		return model.FilterOptions{}, &FetchError{Endpoint: filterOptionsPath, Err: err}
	}
	var opts model.FilterOptions
	if status, err := c.do(req, &opts); err != nil {
		return model.FilterOptions{}, &FetchError{Endpoint: filterOptionsPath, Status: status, Err: err}
	}
	return opts, nil
}

// GetWorldData fetches the rows matching sel.
func (c *Client) GetWorldData(ctx context.Context, sel model.Selection) ([]model.DataRow, error) {
	req, err := c.newRequest(ctx, http.MethodGet, worldDataPath, WorldDataQuery(sel), http.NoBody)
	if err != nil {
		return nil, &FetchError{Endpoint: worldDataPath, Err: err}
	}
	var rows []model.DataRow
	if status, err := c.do(req, &rows); err != nil {
		return nil, &FetchError{Endpoint: worldDataPath, Status: status, Err: err}
	}
	return rows, nil
}

// WorldDataQuery encodes a selection as world-data query parameters.
func WorldDataQuery(sel model.Selection) url.Values {
	q := url.Values{}
	if sel.StartYear != 0 {
		q.Set("start_year", strconv.Itoa(sel.StartYear))
	}
	if sel.EndYear != 0 {
		q.Set("end_year", strconv.Itoa(sel.EndYear))
	}
	for _, country := range sel.Countries {
		q.Add("countries[]", country)
	}
	return q
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. The returned status is
// zero when no response was received.
func (c *Client) do(req *http.Request, out any) (int, error) {
	logging.Debugf("%s %s request_id=%s", req.Method, req.URL.Path, req.Header.Get("X-Request-ID"))
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
