package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound indicates no entry exists for the ID (or it expired).
	ErrNotFound = errors.New("monitor not found")

	// ErrInvalidEntry indicates the stored entry is corrupted.
	ErrInvalidEntry = errors.New("invalid monitor entry")
)

// Config holds store configuration.
type Config struct {
	// TTL is how long an entry is kept after NotBefore.
	TTL time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		TTL: 24 * time.Hour,
	}
}

// Store persists pending async operations in Redis so that a separate
// process can poll them later.
type Store struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a new monitor store with Redis backend.
func NewStore(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Store{
		redis:  redisClient,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Save stores a resolved monitor under a new ID.
func (s *Store) Save(ctx context.Context, m async.Monitor) (*Entry, error) {
	entry, err := NewEntry(uuid.NewString(), m, s.now())
	if err != nil {
		MonitorErrors.WithLabelValues("save").Inc()
		return nil, err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		MonitorErrors.WithLabelValues("save").Inc()
		return nil, fmt.Errorf("marshal monitor entry: %w", err)
	}

	ttl := entry.NotBefore.Sub(entry.AcceptedAt) + s.config.TTL
	if err := s.redis.Set(ctx, Key(entry.ID), data, ttl).Err(); err != nil {
		MonitorErrors.WithLabelValues("save").Inc()
		return nil, fmt.Errorf("redis set: %w", err)
	}

	MonitorsSaved.Inc()
	s.logger.Debug().
		Str("id", entry.ID).
		Str("location", entry.Location).
		Time("not_before", entry.NotBefore).
		Msg("Stored pending async operation")

	return entry, nil
}

// Get retrieves an entry by ID.
// Returns ErrNotFound if the entry doesn't exist or has expired.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	data, err := s.redis.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		MonitorErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		MonitorErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, Key(id)).Err(); err != nil {
		MonitorErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// List returns the IDs of all stored entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.redis.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := ParseKey(iter.Val())
		if err != nil {
			s.logger.Warn().Err(err).Msg("Skipping foreign key")
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		MonitorErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return ids, nil
}
