package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTracker creates a tracker backed by an in-memory Redis with a fixed clock.
func setupTracker(t *testing.T, now time.Time) (*Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tracker := NewTracker(client, zerolog.Nop())
	tracker.now = func() time.Time { return now }
	return tracker, mr
}

func TestTracker_GetState_Empty(t *testing.T) {
	tracker, _ := setupTracker(t, time.Now())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.BlockedUntil.IsZero() {
		t.Errorf("BlockedUntil = %v, want zero", state.BlockedUntil)
	}
}

func TestTracker_UpdateFromResponse(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		status      int
		retryAfter  string
		wantBlocked bool
		wantWindow  time.Duration
		wantErr     bool
	}{
		{
			name:        "429 with seconds",
			status:      http.StatusTooManyRequests,
			retryAfter:  "30",
			wantBlocked: true,
			wantWindow:  30 * time.Second,
		},
		{
			name:        "503 with http date",
			status:      http.StatusServiceUnavailable,
			retryAfter:  now.Add(2 * time.Minute).Format(http.TimeFormat),
			wantBlocked: true,
			wantWindow:  2 * time.Minute,
		},
		{
			name:        "429 without header uses default",
			status:      http.StatusTooManyRequests,
			wantBlocked: true,
			wantWindow:  DefaultBlockWindow,
		},
		{
			name:        "503 without header",
			status:      http.StatusServiceUnavailable,
			wantBlocked: false,
		},
		{
			name:        "capped window",
			status:      http.StatusTooManyRequests,
			retryAfter:  "86400",
			wantBlocked: true,
			wantWindow:  MaxBlockWindow,
		},
		{
			name:        "accepted is ignored",
			status:      http.StatusAccepted,
			retryAfter:  "30",
			wantBlocked: false,
		},
		{
			name:       "garbage header",
			status:     http.StatusTooManyRequests,
			retryAfter: "soon",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, mr := setupTracker(t, now)
			ctx := context.Background()

			headers := http.Header{}
			if tt.retryAfter != "" {
				headers.Set("Retry-After", tt.retryAfter)
			}

			err := tracker.UpdateFromResponse(ctx, tt.status, headers)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateFromResponse() error = %v, wantErr %v", err, tt.wantErr)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if got := state.IsBlocked(now); got != tt.wantBlocked {
				t.Fatalf("IsBlocked() = %v, want %v", got, tt.wantBlocked)
			}
			if !tt.wantBlocked {
				return
			}
			if got := state.TimeUntilOpen(now); got != tt.wantWindow {
				t.Errorf("TimeUntilOpen() = %v, want %v", got, tt.wantWindow)
			}
			if state.LastStatus != tt.status {
				t.Errorf("LastStatus = %d, want %d", state.LastStatus, tt.status)
			}
			if ttl := mr.TTL(RedisKeyBlockedUntil); ttl != tt.wantWindow {
				t.Errorf("redis TTL = %v, want %v", ttl, tt.wantWindow)
			}
		})
	}
}

func TestTracker_ShouldAllowRequest(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	tracker, mr := setupTracker(t, now)
	ctx := context.Background()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil || !allowed {
		t.Fatalf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
	}

	headers := http.Header{}
	headers.Set("Retry-After", "10")
	if err := tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers); err != nil {
		t.Fatalf("UpdateFromResponse() error = %v", err)
	}

	allowed, err = tracker.ShouldAllowRequest(ctx)
	if err != nil || allowed {
		t.Fatalf("ShouldAllowRequest() = %v, %v; want false, nil", allowed, err)
	}

	// Window expires in Redis and on the clock.
	mr.FastForward(11 * time.Second)
	tracker.now = func() time.Time { return now.Add(11 * time.Second) }

	allowed, err = tracker.ShouldAllowRequest(ctx)
	if err != nil || !allowed {
		t.Fatalf("ShouldAllowRequest() after window = %v, %v; want true, nil", allowed, err)
	}
}

func TestTracker_RedisUnavailable(t *testing.T) {
	tracker, mr := setupTracker(t, time.Now())
	mr.Close()

	if _, err := tracker.ShouldAllowRequest(context.Background()); err == nil {
		t.Error("ShouldAllowRequest() should fail when Redis is down")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", value: "120", want: 2 * time.Minute},
		{name: "padded", value: " 5 ", want: 5 * time.Second},
		{name: "date in future", value: now.Add(time.Minute).Format(http.TimeFormat), want: time.Minute},
		{name: "date in past", value: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
		{name: "negative", value: "-1", wantErr: true},
		{name: "garbage", value: "later", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRetryAfter(tt.value, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRetryAfter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
