package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"rfqgateway/pkg/logger"
	"rfqgateway/pkg/metrics"
	"rfqgateway/pkg/trace"
)

// 上游响应体上限
const maxBodyBytes = 8 << 20

var ErrBodyTooLarge = errors.New("upstream body exceeds limit")

type Config struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	Timeout        time.Duration
}

// Client wraps the Supabase REST (PostgREST), RPC and Auth endpoints.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceRoleKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Host returns the configured project host, used by the admin debug endpoint.
func (c *Client) Host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (c *Client) HasServiceKey() bool { return c.serviceKey != "" }

// publicKey is the apikey sent alongside end-user bearers.
func (c *Client) publicKey() string {
	if c.anonKey != "" {
		return c.anonKey
	}
	return c.serviceKey
}

// GetWithUser performs a user-token GET on /rest/v1/<path>. Upstream 4xx/5xx are returned
// in the Response; transport failures and oversized bodies are errors.
func (c *Client) GetWithUser(ctx context.Context, path, bearer string) (*Response, error) {
	return c.do(ctx, "rest.get_user", http.MethodGet, "/rest/v1/"+path, nil, c.publicKey(), bearer, nil)
}

// GetService performs a service-role GET on /rest/v1/<path> and fails on status >= 400.
func (c *Client) GetService(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := c.do(ctx, "rest.get_service", http.MethodGet, "/rest/v1/"+path, nil, c.serviceKey, c.serviceKey, nil)
	return c.must("rest.get_service", resp, err)
}

// Post inserts rows into table and returns the inserted representation.
func (c *Client) Post(ctx context.Context, table string, rows any) (json.RawMessage, error) {
	resp, err := c.do(ctx, "rest.post", http.MethodPost, "/rest/v1/"+table, rows, c.serviceKey, c.serviceKey, representation)
	return c.must("rest.post", resp, err)
}

// Patch updates the rows of table matched by filter (a PostgREST query such as
// "id=eq.<id>").
func (c *Client) Patch(ctx context.Context, table, filter string, fields any) (json.RawMessage, error) {
	resp, err := c.do(ctx, "rest.patch", http.MethodPatch, "/rest/v1/"+table+"?"+filter, fields, c.serviceKey, c.serviceKey, representation)
	return c.must("rest.patch", resp, err)
}

func (c *Client) Delete(ctx context.Context, table, filter string) error {
	resp, err := c.do(ctx, "rest.delete", http.MethodDelete, "/rest/v1/"+table+"?"+filter, nil, c.serviceKey, c.serviceKey, nil)
	_, err = c.must("rest.delete", resp, err)
	return err
}

// RPCWithUser calls a Postgres function with the caller's bearer and the service-role
// apikey.
func (c *Client) RPCWithUser(ctx context.Context, fn string, params any, bearer string) (*Response, error) {
	return c.do(ctx, "rpc."+fn, http.MethodPost, "/rest/v1/rpc/"+fn, params, c.serviceKey, bearer, nil)
}

// GetUser resolves an access token through GoTrue.
func (c *Client) GetUser(ctx context.Context, bearer string) (*Response, error) {
	return c.do(ctx, "auth.user", http.MethodGet, "/auth/v1/user", nil, c.publicKey(), bearer, nil)
}

// InviteUser sends a GoTrue invite email; data ends up in the user's user_metadata.
func (c *Client) InviteUser(ctx context.Context, email string, data map[string]any) (*Response, error) {
	body := map[string]any{"email": email}
	if len(data) > 0 {
		body["data"] = data
	}
	return c.do(ctx, "auth.invite", http.MethodPost, "/auth/v1/invite", body, c.serviceKey, c.serviceKey, nil)
}

// UpdateUserAppMetadata merges meta into the user's app_metadata.
func (c *Client) UpdateUserAppMetadata(ctx context.Context, userID string, meta map[string]any) error {
	resp, err := c.do(ctx, "auth.admin_update", http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(userID),
		map[string]any{"app_metadata": meta}, c.serviceKey, c.serviceKey, nil)
	_, err = c.must("auth.admin_update", resp, err)
	return err
}

var representation = map[string]string{"Prefer": "return=representation"}

func (c *Client) must(op string, resp *Response, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &UpstreamError{Operation: op, Status: resp.Status, Body: resp.Body}
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, apiKey, bearer string, extra map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("supabase %s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("supabase %s: create request: %w", op, err)
	}
	req.Header.Set("apikey", apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName, traceID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCallLatency(op, "error", time.Since(start))
		logger.WithTrace(ctx, c.logger).Warn("Supabase call failed",
			zap.String("operation", op),
			zap.Error(err),
		)
		return nil, fmt.Errorf("supabase %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	metrics.RecordUpstreamCallLatency(op, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("supabase %s: read body: %w", op, err)
	}
	if len(raw) > maxBodyBytes {
		logger.WithTrace(ctx, c.logger).Warn("Supabase body too large",
			zap.String("operation", op),
			zap.Int("limit", maxBodyBytes),
		)
		return nil, fmt.Errorf("supabase %s: %w", op, ErrBodyTooLarge)
	}

	if resp.StatusCode >= 400 {
		logger.WithTrace(ctx, c.logger).Info("Supabase upstream error",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
		)
	}

	return &Response{Status: resp.StatusCode, Body: normalizeBody(raw)}, nil
}
