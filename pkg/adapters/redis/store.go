package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/tourguide/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "tourguide:session:"

// Store implements ports.SessionStore using Redis.
// Each tab is a hash holding the tutorialSteps and currentStepIndex fields.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client returns the underlying client, so a Locker can share the connection pool.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Prefix returns the configured key prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) key(tabID string) string {
	return s.prefix + tabID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the session record to Redis.
func (s *Store) Save(ctx context.Context, tabID string, session *domain.Session) error {
	rec := session.Record()
	steps, err := json.Marshal(rec.TutorialSteps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	key := s.key(tabID)
	pipe := s.client.TxPipeline()

	pipe.HSet(ctx, key,
		domain.FieldTutorialSteps, string(steps),
		domain.FieldCurrentStepIndex, *rec.CurrentStepIndex,
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	} else {
		pipe.Persist(ctx, key)
	}

	// Score = Now + TTL. If TTL = 0, Score = far future.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}

	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: tabID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the session record from Redis.
func (s *Store) Load(ctx context.Context, tabID string) (*domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key(tabID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	var rec domain.SessionRecord
	if raw, ok := fields[domain.FieldTutorialSteps]; ok {
		var steps []domain.Step
		if err := json.Unmarshal([]byte(raw), &steps); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSessionCorrupt, domain.FieldTutorialSteps, err)
		}
		rec.TutorialSteps = &steps
	}
	if raw, ok := fields[domain.FieldCurrentStepIndex]; ok {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSessionCorrupt, domain.FieldCurrentStepIndex, err)
		}
		rec.CurrentStepIndex = &idx
	}

	return rec.Session()
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, tabID string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(tabID))
	pipe.ZRem(ctx, s.indexKey(), tabID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns the tabs with a live session.
// Expired entries are pruned from the index lazily.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	tabs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return tabs, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
