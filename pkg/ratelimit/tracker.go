package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odata_throttle_blocks_total",
		Help: "Total number of batch requests blocked by an open throttle window",
	})

	throttleUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_throttle_updates_total",
		Help: "Total number of throttle windows opened by status",
	}, []string{"status"})
)

// Tracker records service throttling and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new throttle tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// GetState retrieves the current throttle state from Redis.
// Returns an open state if no window is stored.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	blockedUntil, err := t.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &ThrottleState{}, nil
		}
		return nil, fmt.Errorf("get blocked until: %w", err)
	}

	status, err := t.redis.Get(ctx, RedisKeyLastStatus).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last status: %w", err)
	}

	return &ThrottleState{
		BlockedUntil: time.UnixMilli(blockedUntil),
		LastStatus:   status,
	}, nil
}

// UpdateFromResponse opens a throttle window when the service answered
// 429 Too Many Requests or 503 Service Unavailable. Other statuses are ignored.
func (t *Tracker) UpdateFromResponse(ctx context.Context, status int, headers http.Header) error {
	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return nil
	}

	now := t.now()
	var window time.Duration
	if value := headers.Get("Retry-After"); value != "" {
		delay, err := ParseRetryAfter(value, now)
		if err != nil {
			return fmt.Errorf("parse Retry-After header: %w", err)
		}
		window = delay
	} else if status == http.StatusTooManyRequests {
		window = DefaultBlockWindow
	}

	window = clampWindow(window)
	if window == 0 {
		return nil
	}

	blockedUntil := now.Add(window)
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyBlockedUntil, blockedUntil.UnixMilli(), window)
	pipe.Set(ctx, RedisKeyLastStatus, status, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}

	throttleUpdatesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	t.logger.Warn().
		Int("status", status).
		Dur("window", window).
		Time("blocked_until", blockedUntil).
		Msg("Service throttling - requests paused")

	return nil
}

// ShouldAllowRequest checks whether a request may be sent now.
// Returns false while a throttle window is open.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get throttle state: %w", err)
	}

	now := t.now()
	if state.IsBlocked(now) {
		t.logger.Warn().
			Int("last_status", state.LastStatus).
			Dur("wait_duration", state.TimeUntilOpen(now)).
			Msg("Throttle window open - blocking request")

		throttleBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}

// ParseRetryAfter parses a transport-level Retry-After value, either
// delay-seconds or an HTTP-date, into a delay relative to now.
func ParseRetryAfter(value string, now time.Time) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("negative delay %d", seconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, fmt.Errorf("invalid Retry-After %q", value)
	}
	if d := at.Sub(now); d > 0 {
		return d, nil
	}
	return 0, nil
}
