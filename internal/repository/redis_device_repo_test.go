package repository

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interferingHook runs interfere right before the first MULTI/EXEC it sees
// while armed, and counts every MULTI/EXEC.
type interferingHook struct {
	interfere func(ctx context.Context) error
	armed     atomic.Bool
	execs     atomic.Int32
}

func (h *interferingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *interferingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *interferingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if len(cmds) > 0 && cmds[0].Name() == "multi" && h.armed.Load() {
			if h.execs.Add(1) == 1 {
				if err := h.interfere(ctx); err != nil {
					return err
				}
			}
		}
		return next(ctx, cmds)
	}
}

// newInterferedRedisStore returns a store whose first armed transaction
// races a write made by interfere through a second connection.
func newInterferedRedisStore(t *testing.T, interfere func(ctx context.Context, other *redis.Client) error) (*RedisDeviceRepository, *interferingHook, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		_ = other.Close()
	})

	hook := &interferingHook{interfere: func(ctx context.Context) error { return interfere(ctx, other) }}
	rdb.AddHook(hook)
	return NewRedisDeviceRepository(rdb, "test", newTestLogger()), hook, other
}

func TestRedisRebind_RetriesWhenOldMsisdnKeyChanges(t *testing.T) {
	ctx := context.Background()
	s, hook, other := newInterferedRedisStore(t, func(ctx context.Context, other *redis.Client) error {
		return other.Set(ctx, "test:device:msisdn:1000", "1", 0).Err()
	})

	first, err := s.Register(ctx, "1000", "A", "ios")
	require.NoError(t, err)

	hook.armed.Store(true)
	rebound, err := s.Register(ctx, "2000", "A", "")
	require.NoError(t, err)

	assert.Equal(t, int32(2), hook.execs.Load(), "the write touching the old msisdn key must abort once")
	assert.Equal(t, first.ID, rebound.ID)
	assert.Equal(t, "2000", rebound.Msisdn)

	n, err := other.Exists(ctx, "test:device:msisdn:1000").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	assertUnique(t, s)
}

func TestRedisRebind_RetriesWhenRecordChanges(t *testing.T) {
	ctx := context.Background()
	s, hook, _ := newInterferedRedisStore(t, func(ctx context.Context, other *redis.Client) error {
		return other.HSet(ctx, "test:device:1", "touched", "1").Err()
	})

	_, err := s.Register(ctx, "1000", "A", "ios")
	require.NoError(t, err)

	hook.armed.Store(true)
	rebound, err := s.Register(ctx, "2000", "A", "")
	require.NoError(t, err)

	assert.Equal(t, int32(2), hook.execs.Load(), "the write touching the record must abort once")
	assert.Equal(t, "2000", rebound.Msisdn)
}

func TestRedisDelete_RetriesWhenRecordChanges(t *testing.T) {
	ctx := context.Background()
	s, hook, other := newInterferedRedisStore(t, func(ctx context.Context, other *redis.Client) error {
		return other.HSet(ctx, "test:device:1", "touched", "1").Err()
	})

	_, err := s.Register(ctx, "1000", "A", "ios")
	require.NoError(t, err)

	hook.armed.Store(true)
	require.NoError(t, s.DeleteByIdentifier(ctx, "A"))

	assert.Equal(t, int32(2), hook.execs.Load())
	n, err := other.Exists(ctx, "test:device:1", "test:device:identifier:A", "test:device:msisdn:1000").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
