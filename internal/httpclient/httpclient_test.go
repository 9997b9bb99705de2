package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransport struct{ n int }

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.n++
	return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: req}, nil
}

func TestLimitDisabled(t *testing.T) {
	next := &countingTransport{}
	assert.Same(t, next, Limit(next, 0, 0))
}

func TestLimitHonorsContext(t *testing.T) {
	next := &countingTransport{}
	rt := Limit(next, 0.001, 1)

	req := httptest.NewRequest(http.MethodGet, "http://example.test", nil)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rt.RoundTrip(req.WithContext(ctx))
	assert.Error(t, err)
	assert.Equal(t, 1, next.n)
}

func TestNewServesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{Timeout: 5 * time.Second, RequestsPerSecond: 50})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
