package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	AuthorizationHeader = "Authorization"
	RequestIDHeader     = "X-Request-ID"
	ContentTypeHeader   = "Content-Type"
	AcceptHeader        = "Accept"
	ContentTypeJSON     = "application/json"
)

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status code: %d for %s %s, response: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Response is the raw outcome of a request. OK is false for non-2xx statuses.
type Response struct {
	StatusCode int
	OK         bool
	body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v interface{}) error {
	if len(r.body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(r.body))
	}
	return nil
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.body)
}

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	limiter *rate.Limiter

	mu    sync.RWMutex
	token string
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
}

// SetHeader adds a header sent with every request.
func (c *BaseClient) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetRateLimit caps outbound requests per second. A non-positive rps disables the limit.
func (c *BaseClient) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetToken replaces the bearer token. An empty token removes the Authorization header.
func (c *BaseClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *BaseClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Request sends a request and returns the response without judging its status.
// A non-nil body is encoded as JSON.
func (c *BaseClient) Request(ctx context.Context, method, endpoint string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	c.mu.RUnlock()
	req.Header.Set(AcceptHeader, ContentTypeJSON)
	if body != nil {
		req.Header.Set(ContentTypeHeader, ContentTypeJSON)
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	if token := c.Token(); token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	return &Response{
		StatusCode: resp.StatusCode,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		body:       responseBody,
	}, nil
}

// MakeRequest sends a request and returns the body of a 2xx response, or an *APIError.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	resp, err := c.Request(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &APIError{
			Method:     method,
			Path:       endpoint,
			StatusCode: resp.StatusCode,
			Body:       resp.Text(),
		}
	}
	return resp.body, nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, body)
}

