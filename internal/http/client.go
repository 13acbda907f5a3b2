package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Common errors. A *StatusError matches the one for its code via errors.Is.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
	ErrTooLarge     = errors.New("http: response body exceeds size limit")
)

// retryableStatuses are the response codes worth another attempt.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// errorBodyLimit caps how much of a failed response is kept for the error message.
const errorBodyLimit = 1024

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds a single attempt, including reading the body.
	// Default: 60s
	Timeout time.Duration

	// MaxAttempts is the total number of attempts per fetch.
	// Default: 3
	MaxAttempts int

	// RetryBackoff is the base backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// MaxBodySize rejects larger responses. Zero means unlimited.
	MaxBodySize int64

	// UserAgent is sent with every request.
	UserAgent string

	// Jitter overrides the backoff jitter source.
	Jitter func(max time.Duration) time.Duration

	// Sleep overrides how the client waits between attempts.
	Sleep func(ctx context.Context, d time.Duration) error

	// Logger receives retry diagnostics. Default: no-op.
	Logger *zap.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:      60 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: time.Second,
		UserAgent:    "PagoPA-SEND-CscaMasterlistSync",
	}
}

// FetchResult holds a fully downloaded response body.
type FetchResult struct {
	Body []byte
	Size int64
}

// FetchErrorKind tells whether a fetch failed on a permanent cause or ran out of attempts.
type FetchErrorKind int

const (
	// Fatal means the cause will not resolve by retrying.
	Fatal FetchErrorKind = iota + 1
	// Exhausted means every attempt failed on a retryable cause.
	Exhausted
)

func (k FetchErrorKind) String() string {
	switch k {
	case Fatal:
		return "fatal"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// FetchError is the terminal failure of a fetch.
type FetchError struct {
	Kind     FetchErrorKind
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s after %d attempt(s): %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Is maps well-known codes onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrServerError:
		return e.Code >= 500
	}
	return false
}

// Client downloads whole documents with bounded retries.
type Client struct {
	client  *http.Client
	opts    Options
	backoff Backoff
	log     *zap.Logger
}

// NewClient creates a new HTTP client with the given options.
// Zero fields fall back to DefaultOptions.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		// Deadlines come from the per-attempt context.
		client:  &http.Client{Transport: transport},
		opts:    opts,
		backoff: Backoff{Base: opts.RetryBackoff, Jitter: opts.Jitter},
		log:     logger,
	}
}

// attemptState belongs to a single Fetch call.
type attemptState struct {
	attempt int
	lastErr error
	waited  time.Duration
}

// Fetch downloads url, retrying transient failures.
// Any failure is returned as a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	st := &attemptState{}

	for st.attempt = 0; st.attempt < c.opts.MaxAttempts; st.attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, c.fail(Fatal, url, st.attempt, err)
		}

		res, retryable, err := c.try(ctx, url)
		if err == nil {
			return res, nil
		}
		st.lastErr = err

		if !retryable || ctx.Err() != nil {
			return nil, c.fail(Fatal, url, st.attempt+1, err)
		}
		if st.attempt >= c.opts.MaxAttempts-1 {
			break
		}

		delay := c.backoff.Delay(st.attempt)
		c.log.Warn("fetch attempt failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", st.attempt+1),
			zap.Int("max_attempts", c.opts.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.opts.Sleep(ctx, delay); err != nil {
			return nil, c.fail(Fatal, url, st.attempt+1, err)
		}
		st.waited += delay
	}

	c.log.Error("fetch attempts exhausted",
		zap.String("url", url),
		zap.Int("attempts", c.opts.MaxAttempts),
		zap.Duration("waited", st.waited),
		zap.Error(st.lastErr),
	)
	return nil, c.fail(Exhausted, url, c.opts.MaxAttempts, st.lastErr)
}

func (c *Client) fail(kind FetchErrorKind, url string, attempts int, err error) error {
	return &FetchError{Kind: kind, URL: url, Attempts: attempts, Err: err}
}

// try performs one attempt and reports whether its failure is retryable.
func (c *Client) try(ctx context.Context, url string) (*FetchResult, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, isRetryableTransport(err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, retryableStatuses[resp.StatusCode], &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, isRetryableTransport(err), err
	}

	return &FetchResult{Body: body, Size: int64(len(body))}, false, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	limit := c.opts.MaxBodySize
	if limit <= 0 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}

	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: content length %d > %d", ErrTooLarge, resp.ContentLength, limit)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, limit)
	}
	return body, nil
}

// isRetryableTransport reports whether a transport failure is transient:
// timeouts, resets, refusals and name resolution misses.
func isRetryableTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound || dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
