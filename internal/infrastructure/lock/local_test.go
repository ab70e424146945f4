package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameProduct(t *testing.T) {
	locker := NewLocalLocker()
	productID := uuid.New()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), []uuid.UUID{productID})
			require.NoError(t, err)
			defer release()

			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Empty(t, locker.slots, "slots are dropped once nobody waits")
}

func TestLocalLocker_DifferentProductsDoNotBlock(t *testing.T) {
	locker := NewLocalLocker()
	releaseA, err := locker.Acquire(context.Background(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	releaseB()
}

func TestLocalLocker_ContextCancelReleasesPartialLocks(t *testing.T) {
	locker := NewLocalLocker()
	ids := sortedUnique([]uuid.UUID{uuid.New(), uuid.New()})

	releaseSecond, err := locker.Acquire(context.Background(), ids[1:])
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, ids)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	releaseFirst, err := locker.Acquire(context.Background(), ids[:1])
	require.NoError(t, err, "first product was freed after the failed attempt")
	releaseFirst()
	releaseSecond()
}

func TestLocalLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := NewLocalLocker()
	id := uuid.New()
	release, err := locker.Acquire(context.Background(), []uuid.UUID{id, id})
	require.NoError(t, err)
	release()
	release()

	again, err := locker.Acquire(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	again()
}

func TestSortedUnique(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	assert.Equal(t, []uuid.UUID{b, a}, sortedUnique([]uuid.UUID{a, b, a}))
}
