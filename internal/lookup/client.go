// Package lookup provides a client for the iTunes lookup API.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/asp-search/internal/model"
)

// DefaultBaseURL is the public lookup endpoint.
const DefaultBaseURL = "https://itunes.apple.com/lookup"

// Client fetches app metadata for one key at a time.
type Client interface {
	// Lookup performs exactly one request for key. A zero ResultCount is a
	// successful "not found"; every other failure is returned as *Error.
	Lookup(ctx context.Context, key string, kind model.LookupKind) (*Response, error)
}

// Response is the decoded lookup payload. Result items keep the service's
// field names; numbers are decoded as json.Number.
type Response struct {
	ResultCount int
	Results     []map[string]any
}

// First returns the first result item, or nil when there are none.
func (r *Response) First() map[string]any {
	if r == nil || len(r.Results) == 0 {
		return nil
	}
	return r.Results[0]
}

type wireResponse struct {
	ResultCount *int             `json:"resultCount"`
	Results     []map[string]any `json:"results"`
}

// Option configures the lookup client.
type Option func(*httpClient)

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets an overall per-request timeout. Zero keeps the transport
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
}

// NewClient creates a lookup client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

func (c *httpClient) requestURL(key string, kind model.LookupKind) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", eris.Wrap(err, "lookup: parse base url")
	}
	q := url.Values{}
	q.Set(kind.QueryParam(), key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *httpClient) Lookup(ctx context.Context, key string, kind model.LookupKind) (*Response, error) {
	reqURL, err := c.requestURL(key, kind)
	if err != nil {
		return nil, newError(key, kind, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, newError(key, kind, 0, eris.Wrap(err, "lookup: create request"))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(key, kind, 0, eris.Wrap(err, "lookup: request failed"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(key, kind, resp.StatusCode, eris.Wrap(err, "lookup: read response body"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newError(key, kind, resp.StatusCode,
			eris.Errorf("lookup: unexpected status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	return decode(key, kind, body)
}

func decode(key string, kind model.LookupKind, body []byte) (*Response, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var wire wireResponse
	if err := dec.Decode(&wire); err != nil {
		return nil, newError(key, kind, http.StatusOK, eris.Wrap(err, "lookup: unmarshal response"))
	}
	if wire.ResultCount == nil {
		return nil, newError(key, kind, http.StatusOK, eris.New("lookup: response has no resultCount"))
	}
	if *wire.ResultCount > 0 && len(wire.Results) == 0 {
		return nil, newError(key, kind, http.StatusOK,
			eris.Errorf("lookup: resultCount %d but no results", *wire.ResultCount))
	}

	return &Response{ResultCount: *wire.ResultCount, Results: wire.Results}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
