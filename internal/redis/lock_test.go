package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second), mr, client
}

func TestWithSlotLockRunsCriticalSection(t *testing.T) {
	locker, mr, _ := newTestLocker(t)

	ran := false
	err := locker.WithSlotLock(context.Background(), uuid.New(), time.Now(), 540, func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	// The lock key must be gone after the section completes.
	assert.Empty(t, mr.Keys())
}

func TestWithSlotLockIsExclusive(t *testing.T) {
	locker, _, _ := newTestLocker(t)
	providerID := uuid.New()
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.WithSlotLock(context.Background(), providerID, date, 540, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := locker.WithSlotLock(context.Background(), providerID, date, 540, func(ctx context.Context) error {
		t.Error("critical section must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	close(release)
}

func TestWithSlotLockDistinctSlotsDoNotContend(t *testing.T) {
	locker, _, _ := newTestLocker(t)
	providerID := uuid.New()
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.WithSlotLock(context.Background(), providerID, date, 540, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	// Same provider and date, different start: no contention.
	err := locker.WithSlotLock(context.Background(), providerID, date, 570, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)

	// Different provider, same slot time: no contention either.
	err = locker.WithSlotLock(context.Background(), uuid.New(), date, 540, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithSlotLockPropagatesSectionError(t *testing.T) {
	locker, mr, _ := newTestLocker(t)

	wantErr := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), uuid.New(), time.Now(), 540, func(ctx context.Context) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	// The lock is released even when the section fails.
	assert.Empty(t, mr.Keys())
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	locker, mr, client := newTestLocker(t)
	providerID := uuid.New()
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), providerID, date, 540, func(ctx context.Context) error {
		// Simulate TTL expiry plus takeover by another process while the
		// section is still running.
		key := mr.Keys()[0]
		require.NoError(t, client.Set(ctx, key, "someone-else", time.Minute).Err())
		return nil
	})
	require.NoError(t, err)

	// The unlock script must not delete a lock it no longer owns.
	require.Len(t, mr.Keys(), 1)
	val, err := client.Get(context.Background(), mr.Keys()[0]).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}
