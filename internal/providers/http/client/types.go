package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3
	userAgent      = "uniremote/1.0"
)

// StatusError is returned for responses outside the 2xx range
type StatusError struct {
	Code   int
	Reason string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP status %d %s for url (%s)", e.Code, e.Reason, e.URL)
}

// Config configures a Client
type Config struct {
	// Name identifies the client; the breaker is named http-<Name>
	Name      string
	Timeout time.Duration
	// Retries is the number of retries after the first attempt. Negative
	// disables retrying.
	Retries   int
	RetryWait time.Duration
	// RateLimit is requests per second, zero meaning unlimited
	RateLimit float64
}

// Client wraps resty with rate limiting and a circuit breaker
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex
}

// New creates a client. Zero fields take the package defaults.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.Retries == 0:
		cfg.Retries = DefaultRetries
	case cfg.Retries < 0:
		cfg.Retries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	name := "http-external"
	if cfg.Name != "" {
		name = "http-" + cfg.Name
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 30 * cfg.RetryWait
	retryClient.Logger = nil
	// Hand the last response back instead of a generic "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent)

	breaker := resilience.New(name, resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
		// Client errors say nothing about the endpoint's health
		IsFailure: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code >= 500
			}
			return true
		},
	})

	c := &Client{
		Resty:   restyClient,
		Breaker: breaker,
	}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetTimeout configures the per-request timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetTimeout(d)
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.Limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// Request creates a request after the breaker and the limiter allow it
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Do performs req. Non-2xx responses are returned together with a
// *StatusError.
func (c *Client) Do(ctx context.Context, req providers.HTTPRequest) (*providers.HTTPResponse, error) {
	r, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if req.Mime != "" {
		r.SetHeader("Content-Type", req.Mime)
	}
	if req.Body != "" {
		r.SetBody(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var out *providers.HTTPResponse
	err = c.Breaker.Execute(func() error {
		resp, err := r.Execute(method, req.URL)
		if err != nil {
			return err
		}
		out = toResponse(resp)
		if out.Status < 200 || out.Status >= 300 {
			return &StatusError{Code: out.Status, Reason: out.Reason, URL: req.URL}
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("external service unavailable: %w", err)
	}
	return out, err
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}

func toResponse(resp *resty.Response) *providers.HTTPResponse {
	return &providers.HTTPResponse{
		Status:  resp.StatusCode(),
		Reason:  http.StatusText(resp.StatusCode()),
		Mime:    resp.Header().Get("Content-Type"),
		Headers: resp.Header(),
		Body:    resp.String(),
	}
}
