package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mstgnz/storegate/infra/logger"
)

const (
	// DefaultTimeout is the per-request timeout used when a provider does not set one.
	DefaultTimeout = 30 * time.Second

	defaultMaxRetries = 3
)

// HTTPClientConfig represents configuration for HTTP client
type HTTPClientConfig struct {
	ProviderName       string
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	DefaultHeaders     map[string]string
	BasicAuthUser      string
	BasicAuthPass      string
	// MaxRetries applies only to requests that carry an idempotency key.
	MaxRetries      uint64
	InitialInterval time.Duration
	Transport       http.RoundTripper
	// IsRejection marks 5xx answers that are final, e.g. SOAP faults
	IsRejection func(statusCode int, body []byte) bool
}

// HTTPRequest represents a standardized HTTP request
type HTTPRequest struct {
	Method         string
	Endpoint       string
	Headers        map[string]string
	Body           any
	FormData       map[string]string
	QueryParams    map[string]string
	IdempotencyKey string
}

// HTTPResponse represents a standardized HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RawBody    string
}

// ProviderHTTPClient provides standardized HTTP operations for providers
type ProviderHTTPClient struct {
	config *HTTPClientConfig
	client *http.Client
}

// NewProviderHTTPClient creates a new provider HTTP client
func NewProviderHTTPClient(config *HTTPClientConfig) *ProviderHTTPClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.InitialInterval == 0 {
		config.InitialInterval = 200 * time.Millisecond
	}

	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: config.InsecureSkipVerify,
			},
		}
	}

	return &ProviderHTTPClient{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// CreateHTTPClientConfig creates a standard HTTP client configuration for providers
func CreateHTTPClientConfig(providerName, baseURL string, timeout time.Duration) *HTTPClientConfig {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &HTTPClientConfig{
		ProviderName: providerName,
		BaseURL:      baseURL,
		Timeout:      timeout,
		MaxRetries:   defaultMaxRetries,
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "StoreGate/1.0",
		},
	}
}

// Timeout returns the per-request timeout
func (c *ProviderHTTPClient) Timeout() time.Duration {
	return c.config.Timeout
}

// SendJSON sends a JSON request and returns the response
func (c *ProviderHTTPClient) SendJSON(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.send(ctx, req, "application/json")
}

// SendForm sends a form-encoded request and returns the response
func (c *ProviderHTTPClient) SendForm(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.send(ctx, req, "application/x-www-form-urlencoded")
}

// SendXML sends an XML request and returns the response
func (c *ProviderHTTPClient) SendXML(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.send(ctx, req, "text/xml; charset=utf-8")
}

// SendRaw sends a raw request and returns the response
func (c *ProviderHTTPClient) SendRaw(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.send(ctx, req, "")
}

// send encodes the body once and retries transient failures when the request is idempotent.
func (c *ProviderHTTPClient) send(ctx context.Context, req *HTTPRequest, contentType string) (*HTTPResponse, error) {
	payload, err := encodeBody(req, contentType)
	if err != nil {
		return nil, err
	}

	fullURL := c.buildURL(req.Endpoint, req.QueryParams)

	if req.IdempotencyKey == "" || c.config.MaxRetries == 0 {
		return c.do(ctx, req, fullURL, contentType, payload)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.InitialInterval
	policy.MaxElapsedTime = 0

	var (
		resp    *HTTPResponse
		attempt int
	)
	operation := func() error {
		attempt++
		r, err := c.do(ctx, req, fullURL, contentType, payload)
		resp = r
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("Retrying provider request", logger.LogContext{
			Provider: c.config.ProviderName,
			Fields: map[string]any{
				"attempt":         attempt,
				"endpoint":        req.Endpoint,
				"idempotency_key": req.IdempotencyKey,
				"error":           err.Error(),
			},
		})
		return err
	}

	err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.config.MaxRetries), ctx))
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrOutcomeUnknown) {
		return resp, fmt.Errorf("%w: %w", ErrOutcomeUnknown, ctx.Err())
	}
	return resp, err
}

func (c *ProviderHTTPClient) do(ctx context.Context, req *HTTPRequest, fullURL, contentType string, payload []byte) (*HTTPResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" && payload != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	if c.config.BasicAuthUser != "" {
		httpReq.SetBasicAuth(c.config.BasicAuthUser, c.config.BasicAuthPass)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, fmt.Errorf("failed to read response body: %w", err))
	}

	response := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		RawBody:    string(respBody),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := ErrRejected
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = ErrTransient
		}
		if c.config.IsRejection != nil && c.config.IsRejection(resp.StatusCode, respBody) {
			kind = ErrRejected
		}
		return response, &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody), kind: kind}
	}

	return response, nil
}

// classifyTransportError separates caller cancellation, client timeouts and network failures.
func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: HTTP request failed: %w", ErrTransient, err)
}

func encodeBody(req *HTTPRequest, contentType string) ([]byte, error) {
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		formData := url.Values{}
		for key, value := range req.FormData {
			formData.Set(key, value)
		}
		if formMap, ok := req.Body.(map[string]string); ok {
			for key, value := range formMap {
				formData.Set(key, value)
			}
		}
		if len(formData) == 0 {
			return rawBytes(req.Body), nil
		}
		return []byte(formData.Encode()), nil
	case contentType == "application/json":
		if req.Body == nil {
			return nil, nil
		}
		jsonData, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON body: %w", err)
		}
		return jsonData, nil
	case strings.HasPrefix(contentType, "text/xml"):
		if raw := rawBytes(req.Body); raw != nil || req.Body == nil {
			return raw, nil
		}
		xmlData, err := xml.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal XML body: %w", err)
		}
		return append([]byte(xml.Header), xmlData...), nil
	default:
		return rawBytes(req.Body), nil
	}
}

func rawBytes(body any) []byte {
	switch v := body.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return nil
	}
}

func joinURL(base, endpoint string) string {
	if endpoint == "" {
		return base
	}
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// buildURL constructs the full URL with query parameters
func (c *ProviderHTTPClient) buildURL(endpoint string, queryParams map[string]string) string {
	fullURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		fullURL = joinURL(c.config.BaseURL, endpoint)
	}

	if len(queryParams) == 0 {
		return fullURL
	}

	u, err := url.Parse(fullURL)
	if err != nil {
		return fullURL
	}
	q := u.Query()
	for key, value := range queryParams {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseJSONResponse parses the response body as JSON into the target
func (c *ProviderHTTPClient) ParseJSONResponse(response *HTTPResponse, target any) error {
	return json.Unmarshal(response.Body, target)
}

// ParseXMLResponse parses the response body as XML into the target
func (c *ProviderHTTPClient) ParseXMLResponse(response *HTTPResponse, target any) error {
	return xml.Unmarshal(response.Body, target)
}
