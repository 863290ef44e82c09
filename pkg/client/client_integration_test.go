//go:build integration

package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/odata-batch-client/internal/testutil"
	"github.com/Sternrassler/odata-batch-client/pkg/monitor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_PendingBatchSavedToStore(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockService()
	defer mock.Close()
	mock.SetResponses(testutil.NewAcceptedResponse("https://svc/monitor/7", 5))

	cfg := DefaultConfig(redisClient, "IntegrationTest/1.0.0")
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	b := c.NewAsyncBatch(batchRequest(mock.ServiceRoot()))
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r, _ := b.AddRetrieve()
	get, _ := http.NewRequest(http.MethodGet, mock.ServiceRoot()+"/People", nil)
	if err := r.SetRequest(get); err != nil {
		t.Fatalf("SetRequest() error = %v", err)
	}

	h, err := b.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	m, ok := h.Monitor()
	if !ok {
		t.Fatal("expected pending handle")
	}

	store := monitor.NewStore(redisClient, monitor.DefaultConfig(), zerolog.Nop())
	entry, err := store.Save(ctx, m)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.Location != "https://svc/monitor/7" {
		t.Errorf("Location = %q", loaded.Location)
	}
}

func TestIntegration_ThrottleSharedAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockService()
	defer mock.Close()
	mock.SetResponses(testutil.NewThrottledResponse(30))

	cfg := DefaultConfig(redisClient, "IntegrationTest/1.0.0")
	cfg.MaxRetries = 0

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, mock.ServiceRoot()+"/$batch", nil)
	resp, err := first.Do(req)
	if err != nil {
		t.Fatalf("first.Do() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("first.Do() status = %d, want 429", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, mock.ServiceRoot()+"/$batch", nil)
	if _, err := second.Do(req); !errors.Is(err, ErrThrottled) {
		t.Fatalf("second.Do() error = %v, want ErrThrottled", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("RequestCount = %d, want 1", got)
	}
}
