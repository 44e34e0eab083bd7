package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"socialhub/aggregator/internal/models"
)

// HTTPClient allows injecting a custom HTTP client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTConfig configures the HTTP client shared by the remote adapters.
type RESTConfig struct {
	BaseURL        string
	Token          string
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64 // client-side rate limit; 0 disables
}

const defaultUserAgent = "socialhub-aggregator/1.0"

type restClient struct {
	http      HTTPClient
	platform  models.Platform
	baseURL   string
	token     string
	userAgent string
	limiter   *rate.Limiter
}

func newRESTClient(p models.Platform, cfg RESTConfig, httpClient HTTPClient) *restClient {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &restClient{
		http:      httpClient,
		platform:  p,
		baseURL:   cfg.BaseURL,
		token:     cfg.Token,
		userAgent: userAgent,
		limiter:   limiter,
	}
}

func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (c *restClient) postJSON(ctx context.Context, path string, body any, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

func (c *restClient) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransientError{Platform: c.platform, Err: err}
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &PermanentError{Platform: c.platform, Err: fmt.Errorf("encoding request body: %w", err)}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return &PermanentError{Platform: c.platform, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failures and timeouts are retried on the next page request.
		return &TransientError{Platform: c.platform, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(c.platform, resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Platform: c.platform, Err: err}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &PermanentError{Platform: c.platform, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// classifyStatus maps an HTTP status onto the error taxonomy. Rate limits and
// server errors are transient; auth failures and other rejections are not.
func classifyStatus(p models.Platform, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{Platform: p, Err: fmt.Errorf("upstream returned %d", status)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &PermanentError{Platform: p, Err: fmt.Errorf("authorization rejected (%d)", status)}
	default:
		return &PermanentError{Platform: p, Err: fmt.Errorf("upstream returned %d", status)}
	}
}
