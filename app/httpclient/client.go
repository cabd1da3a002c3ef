package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/lysyi3m/truth-news/app/metrics"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent  = "truth-detector-ingest/0.1"
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 8 * time.Second

	DefaultMaxBodySize = 20 << 20
)

// ErrBodyTooLarge is returned when a response body exceeds the client's size limit
var ErrBodyTooLarge = errors.New("response body too large")

var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooEarly:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError is returned for a non-2xx response once retries, if any, are exhausted
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

type Response struct {
	Body        []byte
	FinalURL    string
	ContentType string
}

// Client performs GET requests with bounded retries and exponential backoff
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	hostRate   rate.Limit
	maxBody    int64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithMaxBodySize sets the largest accepted response body in bytes
func WithMaxBodySize(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.maxRetries = n
		}
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(cl *Client) {
		cl.baseDelay = base
		cl.maxDelay = max
	}
}

// WithHostRateLimit caps requests per second to any single host; zero disables the cap
func WithHostRateLimit(perSecond float64) Option {
	return func(cl *Client) {
		if perSecond > 0 {
			cl.hostRate = rate.Limit(perSecond)
		}
	}
}

func New(userAgent string, opts ...Option) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := &Client{
		httpClient: &http.Client{},
		userAgent:  userAgent,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		hostRate:   rate.Inf,
		maxBody:    DefaultMaxBodySize,
		limiters:   make(map[string]*rate.Limiter),
		sleep:      sleepContext,
		logger:     slog.Default().With("component", "httpclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL, applying timeout to each attempt. Retryable statuses, timeouts and
// connection failures are retried up to maxRetries times; other failures return immediately.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Debug("Retrying request", "url", rawURL, "attempt", attempt, "delay", delay, "error", lastErr)
			metrics.RecordRetry()
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.wait(ctx, parsed.Host); err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, rawURL, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, rawURL, c.maxBody)
	}

	return &Response{
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// backoff returns min(maxDelay, baseDelay * 2^(attempt-1))
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func (c *Client) wait(ctx context.Context, host string) error {
	if c.hostRate == rate.Inf {
		return nil
	}

	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(c.hostRate, 1)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()

	return limiter.Wait(ctx)
}

// IsRetryable reports whether err is a retryable status, a timeout or a connection failure
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.StatusCode)
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

func IsRetryableStatus(code int) bool {
	return retryableStatuses[code]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
