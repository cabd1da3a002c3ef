package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(opts ...Option) *Client {
	opts = append([]Option{WithBackoff(time.Millisecond, 4*time.Millisecond)}, opts...)
	return New("test-agent/1.0", opts...)
}

func TestClient_Get_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, server.URL, resp.FinalURL)
	assert.Equal(t, "text/html", resp.ContentType)
}

func TestClient_Get_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL+"/old", time.Second)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new", resp.FinalURL)
}

func TestClient_Get_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Get_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient().Get(context.Background(), server.URL, time.Second)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, int32(DefaultMaxRetries+1), calls.Load())
}

func TestClient_Get_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient().Get(context.Background(), server.URL, time.Second)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "404")
}

func TestClient_Get_RetriesTimeouts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		w.Write([]byte("fast"))
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "fast", string(resp.Body))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestClient_Get_RetriesConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	var sleeps int
	c := newTestClient(WithMaxRetries(2))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	_, err := c.Get(context.Background(), addr, time.Second)
	require.Error(t, err)
	assert.Equal(t, 2, sleeps)
}

func TestClient_Get_ContextCancelStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient()
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Get(ctx, server.URL, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Backoff(t *testing.T) {
	c := New("")
	assert.Equal(t, DefaultUserAgent, c.userAgent)

	expected := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, c.backoff(i+1), "attempt %d", i+1)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 425, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(code), code)
	}
	for _, code := range []int{400, 401, 403, 404, 410, 501} {
		assert.False(t, IsRetryableStatus(code), code)
	}
}

func TestClient_HostRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c := newTestClient(WithHostRateLimit(20))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), server.URL, time.Second)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_Get_BodyOverLimitFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(make([]byte, 1025))
	}))
	defer server.Close()

	c := newTestClient(WithMaxBodySize(1024), WithHTTPClient(server.Client()))
	_, err := c.Get(context.Background(), server.URL, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBodyTooLarge))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Get_BodyAtLimitIsKept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	resp, err := newTestClient(WithMaxBodySize(1024)).Get(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 1024)
}
