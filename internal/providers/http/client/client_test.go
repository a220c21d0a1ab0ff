package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uniremote/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/uniremote/backend/internal/providers"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Remote", "test")
		io.WriteString(w, "hello")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Custom", r.Header.Get("X-Custom"))
		w.Write(body)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient() *Client {
	return New(Config{Name: "test", Timeout: 5 * time.Second, Retries: -1})
}

func TestClientDefaults(t *testing.T) {
	c := New(Config{})
	require.NotNil(t, c.Resty)
	require.NotNil(t, c.Limiter)
	assert.Equal(t, "http-external", c.Breaker.Name())
	assert.Equal(t, resilience.StateClosed, c.BreakerState())

	named := New(Config{Name: "media/vlc"})
	assert.Equal(t, "http-media/vlc", named.Breaker.Name())
}

func TestClientGet(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()

	resp, err := c.Do(context.Background(), providers.HTTPRequest{URL: srv.URL + "/ok"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "OK", resp.Reason)
	assert.Equal(t, "text/plain", resp.Mime)
	assert.Equal(t, "test", resp.Headers.Get("X-Remote"))
	assert.Equal(t, "hello", resp.Body)
}

func TestClientSendsBodyAndHeaders(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()

	resp, err := c.Do(context.Background(), providers.HTTPRequest{
		Method:  http.MethodPut,
		URL:     srv.URL + "/echo",
		Headers: map[string]string{"X-Custom": "value"},
		Body:    `{"key":"value"}`,
		Mime:    "application/json",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"key":"value"}`, resp.Body)
	assert.Equal(t, "application/json", resp.Mime)
	assert.Equal(t, http.MethodPut, resp.Headers.Get("X-Method"))
	assert.Equal(t, "value", resp.Headers.Get("X-Custom"))
}

func TestClientStatusErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()

	resp, err := c.Do(context.Background(), providers.HTTPRequest{URL: srv.URL + "/missing"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	// 4xx does not count against the endpoint
	assert.Zero(t, c.Breaker.Counts().TotalFailures)
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()
	ctx := context.Background()

	for range 10 {
		_, err := c.Do(ctx, providers.HTTPRequest{URL: srv.URL + "/broken"})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	_, err := c.Do(ctx, providers.HTTPRequest{URL: srv.URL + "/ok"})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestClientRateLimitHonorsContext(t *testing.T) {
	c := newTestClient()
	c.SetRateLimit(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := c.Request(ctx)
	assert.Error(t, err)
	assert.Nil(t, req)
}

func TestClientTransportError(t *testing.T) {
	c := newTestClient()
	_, err := c.Do(context.Background(), providers.HTTPRequest{URL: "http://127.0.0.1:1/unreachable"})
	require.Error(t, err)
	assert.Equal(t, uint32(1), c.Breaker.Counts().TotalFailures)
}
