// Command odata-batch sends one OData $batch described by a YAML plan and
// prints whether the service answered directly or accepted it for
// asynchronous processing.
//
// Usage:
//
//	odata-batch plan.yaml
//	odata-batch - < plan.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
	"github.com/Sternrassler/odata-batch-client/pkg/client"
	"github.com/Sternrassler/odata-batch-client/pkg/logging"
	"github.com/Sternrassler/odata-batch-client/pkg/monitor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// result is the JSON printed for a resolved batch.
type result struct {
	Outcome           string `json:"outcome"`
	Status            int    `json:"status,omitempty"`
	Location          string `json:"location,omitempty"`
	RetryAfter        *int   `json:"retry_after,omitempty"`
	PreferenceApplied bool   `json:"preference_applied,omitempty"`
	CleanupWarning    string `json:"cleanup_warning,omitempty"`
	MonitorID         string `json:"monitor_id,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
		Output: os.Stderr,
	})

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logger := logging.NewLogger(logging.ComponentCLI)
		logger.Error().Err(err).Msg("Batch failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	logger := logging.NewLogger(logging.ComponentCLI)

	if len(args) != 1 {
		return fmt.Errorf("usage: odata-batch <plan.yaml|->")
	}
	plan, err := readPlan(args[0], stdin)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if redisURL := getEnv("REDIS_URL", ""); redisURL != "" {
		redisClient, err = newRedis(ctx, redisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info().Str("redis", redisURL).Msg("Connected to Redis")
	}

	cfg := client.DefaultConfig(redisClient, getEnv("USER_AGENT", "odata-batch/0.1.0"))
	if v := getEnv("ODATA_VERSION", ""); v != "" {
		cfg.Version = async.Version(v)
	}
	if v := getEnv("MAX_RETRIES", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v := getEnv("TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	c, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()

	b := c.NewAsyncBatch(plan.BatchRequest())
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start batch: %w", err)
	}
	if err := plan.Apply(b); err != nil {
		return err
	}

	handle, err := b.Execute(ctx)
	if err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}

	res, err := describe(ctx, handle, redisClient, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// describe converts a handle to its printed form and persists pending
// monitors when a store is available.
func describe(ctx context.Context, h *async.Handle, redisClient *redis.Client, logger zerolog.Logger) (result, error) {
	if resp, ok := h.Response(); ok {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return result{Outcome: string(async.OutcomeFinal), Status: resp.StatusCode}, nil
	}

	m, _ := h.Monitor()
	res := result{
		Outcome:           string(async.OutcomePending),
		Location:          m.Location.String(),
		RetryAfter:        m.RetryAfter,
		PreferenceApplied: m.PreferenceApplied,
	}
	if m.CleanupWarning != nil {
		res.CleanupWarning = m.CleanupWarning.Error()
	}

	if redisClient == nil {
		return res, nil
	}
	store := monitor.NewStore(redisClient, monitor.DefaultConfig(), logging.NewLogger(logging.ComponentMonitorStore))
	entry, err := store.Save(ctx, m)
	if err != nil {
		return res, fmt.Errorf("save monitor: %w", err)
	}
	res.MonitorID = entry.ID
	logger.Info().Str("monitor_id", entry.ID).Str("location", entry.Location).Msg("Pending batch saved")
	return res, nil
}

func readPlan(path string, stdin io.Reader) (*Plan, error) {
	if path == "-" {
		return LoadPlan(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	return LoadPlan(f)
}

// newRedis accepts either a redis:// URL or a host:port address.
func newRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return redisClient, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
