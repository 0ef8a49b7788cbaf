package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/pkg/redis"
)

// ErrMarkFailed is returned by Do when the processed mark could not be read
// or written. The handler has not run.
var ErrMarkFailed = errors.New("idempotency mark failed")

// Manager runs each pub/sub event at most once per consumer while its mark
// lives. Marks are stored under pt:idempotency:evt:processed:<consumer>:<event_id>.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Do marks eventID as processed for consumer and runs fn. It reports false
// without calling fn when the event was already marked. When fn fails the mark
// is dropped so a redelivery is handled again.
func (m *Manager) Do(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	if consumer == "" {
		return false, errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	key := m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String())

	fresh, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMarkFailed, err)
	}
	if !fresh {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(context.WithoutCancel(ctx), key); delErr != nil {
			return true, errors.Join(err, fmt.Errorf("drop mark: %w", delErr))
		}
		return true, err
	}
	return true, nil
}
