package registry

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Registry is the shared set of currently reserved payment fingerprints.
// Reserve must be atomic across every worker process, so the production
// implementation lives in an external store.
type Registry interface {
	// Reserve inserts member if absent and reports whether the caller
	// now owns it. A store error reads as a collision: the caller must
	// never be handed a fingerprint the store could not confirm.
	Reserve(ctx context.Context, member string) (bool, error)
	// Release removes member; releasing an absent member is a no-op.
	Release(ctx context.Context, member string) error
	Exists(ctx context.Context, member string) (bool, error)
}

// Redis keeps reservations in a single set key, members are two-decimal
// strings like "0.37". SADD's added-count doubles as the atomic
// test-and-insert.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(addr string, key string) *Redis {
	return &Redis{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		key: key,
	}
}

func (r *Redis) Reserve(ctx context.Context, member string) (bool, error) {
	added, err := r.rdb.SAdd(ctx, r.key, member).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (r *Redis) Release(ctx context.Context, member string) error {
	return r.rdb.SRem(ctx, r.key, member).Err()
}

func (r *Redis) Exists(ctx context.Context, member string) (bool, error) {
	return r.rdb.SIsMember(ctx, r.key, member).Result()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Memory satisfies Registry for tests and single-process runs.
type Memory struct {
	mu      sync.Mutex
	members map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{members: make(map[string]struct{})}
}

func (m *Memory) Reserve(_ context.Context, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[member]; ok {
		return false, nil
	}
	m.members[member] = struct{}{}
	return true, nil
}

func (m *Memory) Release(_ context.Context, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, member)
	return nil
}

func (m *Memory) Exists(_ context.Context, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[member]
	return ok, nil
}
