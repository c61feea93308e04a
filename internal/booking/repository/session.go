package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingerrors "clinicbook/internal/booking/errors"
	"clinicbook/pkg/model"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "booking:session:"

// SessionRepository stores wizard sessions with a sliding expiry: every
// read or write pushes the deadline out by the configured TTL.
type SessionRepository interface {
	Create(ctx context.Context, s *model.BookingSession) error
	Get(ctx context.Context, id string) (*model.BookingSession, error)
	Save(ctx context.Context, s *model.BookingSession) error
	Delete(ctx context.Context, id string) error
}

type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{client: client, ttl: ttl}
}

func (r *redisSessionRepository) Create(ctx context.Context, s *model.BookingSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+s.ID, data, r.ttl).Result()
	if err != nil {
		return mapRedisError("create session", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, id string) (*model.BookingSession, error) {
	data, err := r.client.GetEx(ctx, sessionKeyPrefix+id, r.ttl).Bytes()
	if err != nil {
		return nil, mapRedisError("get session", err)
	}

	var s model.BookingSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

// Save fails with ErrSessionNotFound once the session has expired.
func (r *redisSessionRepository) Save(ctx context.Context, s *model.BookingSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := r.client.SetXX(ctx, sessionKeyPrefix+s.ID, data, r.ttl).Result()
	if err != nil {
		return mapRedisError("save session", err)
	}
	if !ok {
		return bookingerrors.ErrSessionNotFound
	}
	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return mapRedisError("delete session", err)
	}
	return nil
}

func mapRedisError(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return bookingerrors.ErrSessionNotFound
	}
	return fmt.Errorf("%w: %s: %v", bookingerrors.ErrStoreUnavailable, op, err)
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type memorySessionRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySessionRepository(ttl time.Duration) SessionRepository {
	return newMemorySessionRepository(ttl, time.Now)
}

func newMemorySessionRepository(ttl time.Duration, now func() time.Time) *memorySessionRepository {
	return &memorySessionRepository{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (r *memorySessionRepository) Create(_ context.Context, s *model.BookingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live(s.ID); ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return r.put(s)
}

func (r *memorySessionRepository) Get(_ context.Context, id string) (*model.BookingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.live(id)
	if !ok {
		return nil, bookingerrors.ErrSessionNotFound
	}
	e.expiresAt = r.now().Add(r.ttl)
	r.entries[id] = e

	var s model.BookingSession
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *memorySessionRepository) Save(_ context.Context, s *model.BookingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live(s.ID); !ok {
		return bookingerrors.ErrSessionNotFound
	}
	return r.put(s)
}

func (r *memorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	return nil
}

func (r *memorySessionRepository) live(id string) (memoryEntry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return e, false
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.entries, id)
		return e, false
	}
	return e, true
}

func (r *memorySessionRepository) put(s *model.BookingSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	r.entries[s.ID] = memoryEntry{data: data, expiresAt: r.now().Add(r.ttl)}
	return nil
}
