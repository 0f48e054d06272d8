// Package httpclient is a linkstore.Store backed by a remote /data service.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/xraph/escrow/linkstore"
)

var _ linkstore.Store = (*Client)(nil)

// DefaultTimeout bounds each request.
const DefaultTimeout = 10 * time.Second

type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New returns a client for the service at baseURL, e.g. "http://localhost:3000".
func New(baseURL string, opts ...Option) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = DefaultTimeout
	c := &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Get(ctx context.Context, id string) (*linkstore.Record, error) {
	var rec linkstore.Record
	if err := c.do(ctx, http.MethodGet, "/data/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) List(ctx context.Context) ([]*linkstore.Record, error) {
	var recs []*linkstore.Record
	if err := c.do(ctx, http.MethodGet, "/data", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) Create(ctx context.Context, r *linkstore.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/data", r, nil)
}

func (c *Client) Update(ctx context.Context, id string, p linkstore.Patch) (*linkstore.Record, error) {
	var rec linkstore.Record
	if err := c.do(ctx, http.MethodPut, "/data/"+url.PathEscape(id), p, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("linkstore/http: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("linkstore/http: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("linkstore/http: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return linkstore.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return linkstore.ErrAlreadyExists
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", linkstore.ErrInvalidRecord, readSnippet(resp.Body))
	case resp.StatusCode >= 300:
		return fmt.Errorf("linkstore/http: %s %s: status %d: %s", method, path, resp.StatusCode, readSnippet(resp.Body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("linkstore/http: decode response: %w", err)
	}
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
