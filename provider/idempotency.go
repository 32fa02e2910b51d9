package provider

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mstgnz/storegate/infra/logger"
	"golang.org/x/sync/singleflight"
)

// DefaultIdempotencyTTL bounds how long a completed result is replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore persists completed operation results by key.
type IdempotencyStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Idempotency de-duplicates operations: completed results are replayed from the
// store and concurrent calls with the same key share a single execution.
type Idempotency struct {
	store IdempotencyStore
	ttl   time.Duration
	group singleflight.Group
}

// NewIdempotency returns nil when store is nil, which disables de-duplication.
func NewIdempotency(store IdempotencyStore, ttl time.Duration) *Idempotency {
	if store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &Idempotency{store: store, ttl: ttl}
}

type idempotentResult[T any] struct {
	value    T
	replayed bool
}

// Idempotent runs fn at most once per key. The bool result reports whether the
// value was replayed rather than produced by this call. Failed calls are not stored.
func Idempotent[T any](ctx context.Context, idem *Idempotency, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	return IdempotentFresh(ctx, idem, key, nil, fn)
}

// IdempotentFresh is Idempotent with a staleness check: a stored value for which
// fresh returns false is ignored and fn runs again. A nil fresh accepts every value.
func IdempotentFresh[T any](ctx context.Context, idem *Idempotency, key string, fresh func(T) bool, fn func(context.Context) (T, error)) (T, bool, error) {
	if idem == nil || key == "" {
		v, err := fn(ctx)
		return v, false, err
	}

	if v, ok := loadResult(ctx, idem, key, fresh); ok {
		return v, true, nil
	}

	// only the caller whose closure runs sees executed; callers that joined
	// the in-flight call get its value as a replay
	executed := false
	res, err, _ := idem.group.Do(key, func() (any, error) {
		executed = true
		if v, ok := loadResult(ctx, idem, key, fresh); ok {
			return idempotentResult[T]{value: v, replayed: true}, nil
		}

		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if data, mErr := json.Marshal(v); mErr == nil {
			if sErr := idem.store.Save(ctx, key, data, idem.ttl); sErr != nil {
				logger.Warn("Failed to persist idempotency record", logger.LogContext{
					Fields: map[string]any{"key": key, "error": sErr.Error()},
				})
			}
		}
		return idempotentResult[T]{value: v}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	out := res.(idempotentResult[T])
	return out.value, out.replayed || !executed, nil
}

func loadResult[T any](ctx context.Context, idem *Idempotency, key string, fresh func(T) bool) (T, bool) {
	var out T
	data, ok, err := idem.store.Load(ctx, key)
	if err != nil {
		logger.Warn("Failed to read idempotency record", logger.LogContext{
			Fields: map[string]any{"key": key, "error": err.Error()},
		})
		return out, false
	}
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	if fresh != nil && !fresh(out) {
		return out, false
	}
	return out, true
}

type memoryRecord struct {
	value     []byte
	expiresAt time.Time
}

// MemoryIdempotencyStore is a process-local IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

// NewMemoryIdempotencyStore creates an empty in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(rec.expiresAt) {
		delete(s.records, key)
		return nil, false, nil
	}
	return rec.value, true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = memoryRecord{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}
