// Package remote provides an HTTP client for the message ingestion API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teledash/teledash/internal/query"
	"github.com/tidwall/gjson"
	"golang.org/x/net/idna"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// API paths.
const (
	pathMessages = "/messages"
	pathRaw      = "/messages/raw"
	pathRecent   = "/messages/recent"
	pathProcess  = "/messages/process"
)

// Client provides access to the message API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	// inflight de-duplicates identical GETs issued while one is outstanding.
	inflight singleflight.Group
}

// Config holds configuration for creating a client.
type Config struct {
	URL           string
	APIKey        string
	AllowInsecure bool
	Timeout       time.Duration
	RateLimitQPS  float64 // 0 disables client-side pacing
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("API URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("API URL must include a host (e.g., http://127.0.0.1:8000)")
	}

	if host := parsedURL.Hostname(); net.ParseIP(host) == nil {
		if _, err := idna.Lookup.ToASCII(host); err != nil {
			return nil, fmt.Errorf("invalid API host %q: %w", host, err)
		}
	}

	// Enforce HTTPS for non-local hosts unless AllowInsecure is set
	if parsedURL.Scheme == "http" && !cfg.AllowInsecure && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("HTTPS required for non-local API hosts\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [remote] url = \"https://api.example.com\"\n" +
			"  2. For trusted networks: add 'allow_insecure = true' to [remote] in config.toml")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default(),
	}
	if cfg.RateLimitQPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), 1)
	}
	return c, nil
}

// WithLogger sets the logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// BaseURL returns the API origin requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// doRequest performs an authenticated HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return resp, nil
}

// fetch performs a request and returns the body of a 2xx response. Every
// failure is returned as a *Error.
func (c *Client) fetch(ctx context.Context, op Op, method, path string, params url.Values, body io.Reader) ([]byte, error) {
	resp, err := c.doRequest(ctx, method, path, params, body)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, handleErrorResponse(op, resp.StatusCode, data)
	}
	return data, nil
}

// get performs a GET shared with any identical GET already in flight. The
// shared request is detached from the caller's cancellation so that one
// caller giving up does not fail the others; the caller still returns as
// soon as its own context is done.
func (c *Client) get(ctx context.Context, op Op, path string, params url.Values) ([]byte, error) {
	key := path + "?" + params.Encode()
	ch := c.inflight.DoChan(key, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), op, http.MethodGet, path, params, nil)
	})

	select {
	case <-ctx.Done():
		return nil, transportError(op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared in-flight request", "path", path)
		}
		return res.Val.([]byte), nil
	}
}

// listResponse matches the list endpoints' response format.
type listResponse[T any] struct {
	Messages []T   `json:"messages"`
	Total    int64 `json:"total"`
}

func decodePage[T any](op Op, data []byte) (*query.Page[T], error) {
	var lr listResponse[T]
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, decodeError(op, err)
	}
	return &query.Page[T]{
		Rows:    lr.Messages,
		Total:   lr.Total,
		Records: extractRecords(data),
	}, nil
}

// ListMessages fetches a page of processed messages.
func (c *Client) ListMessages(ctx context.Context, d query.Descriptor) (*query.Page[query.Message], error) {
	data, err := c.get(ctx, OpListMessages, pathMessages, d.Values())
	if err != nil {
		return nil, err
	}
	return decodePage[query.Message](OpListMessages, data)
}

// ListRawMessages fetches a page of raw, not yet processed messages.
func (c *Client) ListRawMessages(ctx context.Context, d query.Descriptor) (*query.Page[query.RawMessage], error) {
	data, err := c.get(ctx, OpListRawMessages, pathRaw, d.Values())
	if err != nil {
		return nil, err
	}
	return decodePage[query.RawMessage](OpListRawMessages, data)
}

// FetchRecent asks the server to ingest new messages from the monitored
// channels. The response lists the ingested rows; the server reports them
// under "total" as an array, so the count is derived from its length.
func (c *Client) FetchRecent(ctx context.Context) (*query.Recent, error) {
	data, err := c.fetch(ctx, OpFetchRecent, http.MethodPost, pathRecent, nil, nil)
	if err != nil {
		return nil, err
	}

	var rr struct {
		Messages []query.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, decodeError(OpFetchRecent, err)
	}

	count := len(rr.Messages)
	switch total := gjson.GetBytes(data, "total"); {
	case total.IsArray():
		count = len(total.Array())
	case total.Type == gjson.Number:
		count = int(total.Int())
	}

	return &query.Recent{
		Messages: rr.Messages,
		Count:    count,
		Records:  extractRecords(data),
	}, nil
}

// ProcessMessages asks the server to move raw messages into processed
// storage. A nil payload sends no body.
func (c *Client) ProcessMessages(ctx context.Context, payload any) (*query.Ack, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			// Nothing was sent, so no response can exist.
			return nil, transportError(OpProcessMessages, fmt.Errorf("encode payload: %w", err))
		}
		body = bytes.NewReader(encoded)
	}

	data, err := c.fetch(ctx, OpProcessMessages, http.MethodPost, pathProcess, nil, body)
	if err != nil {
		return nil, err
	}

	return &query.Ack{
		Status:  gjson.GetBytes(data, "status").String(),
		Message: gjson.GetBytes(data, "message").String(),
	}, nil
}

// extractRecords reads the "messages" array in document order so exports
// keep the server's column order.
func extractRecords(data []byte) []query.Record {
	rows := gjson.GetBytes(data, "messages")
	if !rows.IsArray() {
		return nil
	}
	var records []query.Record
	rows.ForEach(func(_, row gjson.Result) bool {
		if row.IsObject() {
			records = append(records, toRecord(row))
		}
		return true
	})
	return records
}

func toRecord(row gjson.Result) query.Record {
	var rec query.Record
	row.ForEach(func(key, value gjson.Result) bool {
		rec = append(rec, query.Field{Key: key.String(), Value: toValue(value)})
		return true
	})
	return rec
}

func toValue(v gjson.Result) query.Value {
	switch v.Type {
	case gjson.String:
		return query.Value{Kind: query.ValueString, Text: v.Str}
	case gjson.Number:
		return query.Value{Kind: query.ValueNumber, Text: v.Raw}
	case gjson.True, gjson.False:
		return query.Value{Kind: query.ValueBool, Text: v.Raw}
	case gjson.JSON:
		return query.Value{Kind: query.ValueJSON, Text: v.Raw}
	default:
		return query.Value{Kind: query.ValueNull}
	}
}
