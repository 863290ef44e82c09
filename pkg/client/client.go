// Package client provides the OData batch HTTP client with throttle
// gating, retries and async batch execution.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
	"github.com/Sternrassler/odata-batch-client/pkg/batch"
	"github.com/Sternrassler/odata-batch-client/pkg/logging"
	"github.com/Sternrassler/odata-batch-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for batch requests.
var (
	batchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_batch_requests_total",
		Help: "Total batch requests by status",
	}, []string{"status"})

	batchRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odata_batch_request_duration_seconds",
		Help:    "Batch request duration in seconds, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	batchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_batch_errors_total",
		Help: "Total batch transport errors by class",
	}, []string{"class"})
)

// Client sends OData batch requests.
type Client struct {
	httpClient *http.Client
	throttle   *ratelimit.Tracker
	resolver   *async.Resolver
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for shared throttle state. Optional: nil disables the gate.
	Redis *redis.Client

	// User-Agent header (REQUIRED)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Version is the OData version sent on every request.
	Version async.Version

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Redis:          redis,
		UserAgent:      userAgent,
		Version:        async.V40,
		Timeout:        30 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// New creates a new batch client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Version == "" {
		cfg.Version = async.V40
	}
	if !cfg.Version.Valid() {
		return nil, fmt.Errorf("unsupported OData version %q", cfg.Version)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := logging.NewLogger(logging.ComponentBatchClient)

	var throttle *ratelimit.Tracker
	if cfg.Redis != nil {
		throttle = ratelimit.NewTracker(cfg.Redis, logging.NewLogger(logging.ComponentThrottle))
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		throttle: throttle,
		resolver: async.NewResolver(cfg.Version, logging.NewLogger(logging.ComponentAsyncResolver)),
		config:   cfg,
		logger:   logger,
	}, nil
}

// Do performs an HTTP request with throttle gating and retries.
//
// Non-idempotent requests such as the $batch POST are only resent when a
// 429 or 503 carries Retry-After, since the service may already have
// applied the writes otherwise. Every response that is not retried,
// including 202 Accepted, 4xx and the last 5xx, is returned untouched.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	startTime := time.Now()
	defer func() {
		batchRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check throttle window
	if c.throttle != nil {
		allowed, err := c.throttle.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Throttle check failed")
			return nil, fmt.Errorf("throttle check: %w", err)
		}
		if !allowed {
			batchRequestsTotal.WithLabelValues("throttled").Inc()
			return nil, ErrThrottled
		}
	}

	// Step 2: Protocol headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	if req.Header.Get(async.HeaderODataVersion) == "" {
		req.Header.Set(async.HeaderODataVersion, string(c.config.Version))
	}
	req.Header.Set(async.HeaderODataMaxVersion, string(c.config.Version))

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("method", req.Method).
		Msg("Executing batch request")

	// Step 3: Execute with retries
	retryCfg := c.retryConfig()
	idempotent := isIdempotent(req.Method)

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, retryCfg, c.logger, func(attempt int) (ErrorClass, error) {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return "", fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Msg("HTTP request failed")
			batchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			batchRequestsTotal.WithLabelValues("network_error").Inc()
			if !idempotent {
				// The service may have received the writes
				return "", reqErr
			}
			return ErrorClassNetwork, reqErr
		}

		c.recordThrottle(ctx, resp)

		errClass := classifyStatus(resp.StatusCode)
		batchRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		if errClass == "" {
			return "", nil
		}

		batchErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Batch request error")

		if !shouldRetry(errClass) || attempt >= retryCfg.MaxAttempts {
			// Let the caller handle the status
			return "", nil
		}
		if !idempotent && !rejectedBeforeProcessing(resp) {
			return "", nil
		}

		batchErr := &BatchError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
		if value := resp.Header.Get(async.HeaderRetryAfter); value != "" {
			if d, err := ratelimit.ParseRetryAfter(value, time.Now()); err == nil {
				batchErr.RetryAfter = d
			}
		}
		drainAndClose(resp.Body)
		resp = nil
		return errClass, batchErr
	})

	if retryErr != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, retryErr
	}

	return resp, nil
}

// recordThrottle opens a throttle window for 429/503 responses.
func (c *Client) recordThrottle(ctx context.Context, resp *http.Response) {
	if c.throttle == nil {
		return
	}
	if err := c.throttle.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update throttle state")
	}
}

func (c *Client) retryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = c.config.MaxRetries + 1
	if c.config.InitialBackoff > 0 {
		cfg.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		cfg.MaxBackoff = c.config.MaxBackoff
	}
	return cfg
}

// Dispatch opens a batch stream for req bound to this client.
// It implements Dispatcher.
func (c *Client) Dispatch(ctx context.Context, req batch.Request) (batch.StreamManager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Version == "" {
		req.Version = c.config.Version
	}
	stream, err := batch.NewStream(c, req)
	if err != nil {
		return nil, fmt.Errorf("open batch stream: %w", err)
	}
	return stream, nil
}

// NewAsyncBatch prepares an async batch for req. No I/O happens until Start.
func (c *Client) NewAsyncBatch(req batch.Request) *AsyncBatch {
	return NewAsyncBatch(c, req, c.resolver)
}

// Resolver returns the client's async resolver.
func (c *Client) Resolver() *async.Resolver {
	return c.resolver
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
