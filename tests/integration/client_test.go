//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/odata-batch-client/internal/testutil"
	"github.com/Sternrassler/odata-batch-client/pkg/batch"
	"github.com/Sternrassler/odata-batch-client/pkg/client"
	"github.com/Sternrassler/odata-batch-client/pkg/monitor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newClient(t *testing.T, redisClient *redis.Client) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(redisClient, "IntegrationTest/1.0.0")
	cfg.InitialBackoff = 10 * time.Millisecond
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func composeTwoParts(t *testing.T, b *client.AsyncBatch, root string) {
	t.Helper()

	cs, err := b.AddChangeset()
	if err != nil {
		t.Fatalf("AddChangeset() error = %v", err)
	}
	post, _ := http.NewRequest(http.MethodPost, root+"/People", strings.NewReader(`{"Name":"A"}`))
	if err := cs.AddRequest(post); err != nil {
		t.Fatalf("AddRequest() error = %v", err)
	}

	r, err := b.AddRetrieve()
	if err != nil {
		t.Fatalf("AddRetrieve() error = %v", err)
	}
	get, _ := http.NewRequest(http.MethodGet, root+"/People('russell')", nil)
	if err := r.SetRequest(get); err != nil {
		t.Fatalf("SetRequest() error = %v", err)
	}
}

func TestIntegration_PendingFlowWithMonitorStore(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockService()
	defer mock.Close()
	mock.SetResponses(testutil.NewAcceptedResponse("https://svc/monitor/42", 30))

	ctx := context.Background()
	c := newClient(t, redisClient)

	b := c.NewAsyncBatch(batch.Request{ServiceRoot: mock.ServiceRoot(), RespondAsync: true})
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	composeTwoParts(t, b, mock.ServiceRoot())

	handle, err := b.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	m, ok := handle.Monitor()
	if !ok {
		t.Fatal("Expected pending handle")
	}
	if m.RetryAfter == nil || *m.RetryAfter != 30 {
		t.Errorf("RetryAfter = %v, want 30", m.RetryAfter)
	}

	store := monitor.NewStore(redisClient, monitor.DefaultConfig(), zerolog.Nop())
	entry, err := store.Save(ctx, m)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != entry.ID {
		t.Errorf("List() = %v, want [%s]", ids, entry.ID)
	}

	loaded, err := store.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	restored, err := loaded.Monitor()
	if err != nil {
		t.Fatalf("Monitor() error = %v", err)
	}
	if restored.Location.String() != "https://svc/monitor/42" {
		t.Errorf("Location = %s", restored.Location)
	}
	if loaded.IsReady(time.Now()) {
		t.Error("Monitor should not be ready before Retry-After elapses")
	}
}

func TestIntegration_FinalFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockService()
	defer mock.Close()
	mock.SetResponses(
		testutil.NewUnavailableResponse(0),
		testutil.NewBatchResponse("--batchresponse_1--\r\n"),
	)

	ctx := context.Background()
	c := newClient(t, redisClient)

	b := c.NewAsyncBatch(batch.Request{ServiceRoot: mock.ServiceRoot(), RespondAsync: true})
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	composeTwoParts(t, b, mock.ServiceRoot())

	handle, err := b.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	resp, ok := handle.Response()
	if !ok {
		t.Fatal("Expected final handle")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "--batchresponse_1--\r\n" {
		t.Errorf("Body = %q", string(body))
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("RequestCount = %d, want 2 (one retry after 503 with Retry-After)", got)
	}
}
