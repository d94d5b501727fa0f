// Package httppeer talks to the central server over HTTP.
package httppeer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/infrastructure/transport/wirecodec"
	"sitesync/internal/sync/peer"
	"sitesync/internal/sync/wire"
)

// Paths and headers of the sync protocol.
const (
	PushPath     = "/sync/v1/push"
	PullPath     = "/sync/v1/pull"
	HeaderSiteID = "X-Site-ID"
)

// maxResponseSize bounds a response body before decompression.
const maxResponseSize = 64 << 20

// Config configures a Client.
type Config struct {
	BaseURL  string
	SiteID   string
	Timeout  time.Duration
	Compress bool
}

// Client is a peer.Peer backed by the central server's HTTP API.
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
}

var _ peer.Peer = (*Client)(nil)

// New creates a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperror.NewValidation(fmt.Sprintf("invalid remote url %q", cfg.BaseURL)).
			WithDetail("field", "remote.url")
	}
	if cfg.SiteID == "" {
		return nil, apperror.NewValidation("site id is required for the remote peer")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, base: base, http: httpClient}, nil
}

// Push implements peer.Peer.
func (c *Client) Push(ctx context.Context, records []wire.Record) (int64, error) {
	body, err := wirecodec.Marshal(wire.PushRequest{Records: records}, c.cfg.Compress)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(PushPath, nil), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Compress {
		req.Header.Set("Content-Encoding", wirecodec.EncodingZstd)
	}

	var resp wire.PushResponse
	if err := c.do(req, "push", &resp); err != nil {
		return 0, err
	}
	return resp.AckCursor, nil
}

// Pull implements peer.Peer.
func (c *Client) Pull(ctx context.Context, since int64, limit int) ([]wire.Record, int64, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(PullPath, q), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build pull request: %w", err)
	}

	var resp wire.PullResponse
	if err := c.do(req, "pull", &resp); err != nil {
		return nil, 0, err
	}
	return resp.Records, resp.Cursor, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends req and decodes the JSON answer into out. Network failures and
// 5xx answers are transport errors, which the driver retries; 4xx answers
// are validation errors and are not retried.
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set(HeaderSiteID, c.cfg.SiteID)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Compress {
		req.Header.Set("Accept-Encoding", wirecodec.EncodingZstd)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return apperror.NewTransport(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return apperror.NewTransport(op, fmt.Errorf("server answered %d: %s", resp.StatusCode, snippet(body, resp.Header)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apperror.NewValidation(fmt.Sprintf("%s rejected by server: %s", op, snippet(body, resp.Header))).
			WithDetail("status", resp.StatusCode)
	}

	if err := wirecodec.Unmarshal(body, resp.Header.Get("Content-Encoding"), out); err != nil {
		return apperror.NewTransport(op, err)
	}
	return nil
}

// snippet returns the start of an error body for messages.
func snippet(body []byte, h http.Header) string {
	raw, err := wirecodec.Decode(body, h.Get("Content-Encoding"))
	if err != nil {
		raw = body
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
