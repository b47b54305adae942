package biz

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leadhub/leadhub/internal/objects"
)

func TestAccessService_RecordAccess(t *testing.T) {
	svc := newTestAccessService(t)
	ctx := context.Background()

	t.Run("email then phone merges to both", func(t *testing.T) {
		tier, err := svc.RecordAccess(ctx, "u1", 42, objects.AccessTierEmail)
		require.NoError(t, err)
		require.Equal(t, objects.AccessTierEmail, tier)

		tier, err = svc.RecordAccess(ctx, "u1", 42, objects.AccessTierPhone)
		require.NoError(t, err)
		require.Equal(t, objects.AccessTierBoth, tier)

		tiers, err := svc.GetAccessMap(ctx, "u1", []int64{42})
		require.NoError(t, err)
		require.Equal(t, map[int64]objects.AccessTier{42: objects.AccessTierBoth}, tiers)
	})

	t.Run("full is never downgraded", func(t *testing.T) {
		_, err := svc.RecordAccess(ctx, "u1", 7, objects.AccessTierFull)
		require.NoError(t, err)

		for _, requested := range []objects.AccessTier{objects.AccessTierEmail, objects.AccessTierPhone, objects.AccessTierBoth} {
			tier, err := svc.RecordAccess(ctx, "u1", 7, requested)
			require.NoError(t, err)
			require.Equal(t, objects.AccessTierFull, tier)
		}
	})

	t.Run("grants are per user", func(t *testing.T) {
		_, err := svc.RecordAccess(ctx, "u2", 42, objects.AccessTierPhone)
		require.NoError(t, err)

		tiers, err := svc.GetAccessMap(ctx, "u2", []int64{42, 7})
		require.NoError(t, err)
		require.Equal(t, map[int64]objects.AccessTier{42: objects.AccessTierPhone}, tiers)
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		_, err := svc.RecordAccess(ctx, "", 1, objects.AccessTierEmail)
		require.ErrorIs(t, err, ErrValidation)

		_, err = svc.RecordAccess(ctx, "u1", -1, objects.AccessTierEmail)
		require.ErrorIs(t, err, ErrValidation)

		_, err = svc.RecordAccess(ctx, "u1", 1, objects.AccessTierNone)
		require.ErrorIs(t, err, ErrValidation)

		_, err = svc.RecordAccess(ctx, "u1", 1, objects.AccessTier(9))
		require.ErrorIs(t, err, ErrValidation)

		tiers, err := svc.GetAccessMap(ctx, "u1", []int64{1})
		require.NoError(t, err)
		require.Empty(t, tiers)
	})
}

func TestAccessService_ConcurrentGrantsConverge(t *testing.T) {
	svc := newTestAccessService(t)
	ctx := context.Background()

	const records = 40

	var wg sync.WaitGroup

	for id := int64(1); id <= records; id++ {
		for _, tier := range []objects.AccessTier{objects.AccessTierEmail, objects.AccessTierPhone} {
			wg.Add(1)

			go func() {
				defer wg.Done()

				got, err := svc.RecordAccess(ctx, "u1", id, tier)
				if err != nil {
					t.Error(err)
					return
				}

				if got != tier && got != objects.AccessTierBoth {
					t.Errorf("record %d: unexpected tier %s after granting %s", id, got, tier)
				}
			}()
		}
	}

	wg.Wait()

	tiers, err := svc.GetAccessMap(ctx, "u1", seq(1, records))
	require.NoError(t, err)
	require.Len(t, tiers, records)

	for id, tier := range tiers {
		require.Equal(t, objects.AccessTierBoth, tier, "record %d", id)
	}
}

func TestAccessService_RecordAccessBatch(t *testing.T) {
	svc := newTestAccessService(t)
	ctx := context.Background()

	_, err := svc.RecordAccess(ctx, "u1", 1, objects.AccessTierEmail)
	require.NoError(t, err)

	_, err = svc.RecordAccess(ctx, "u1", 2, objects.AccessTierFull)
	require.NoError(t, err)

	t.Run("phone merges per record", func(t *testing.T) {
		require.NoError(t, svc.RecordAccessBatch(ctx, "u1", []int64{1, 2, 3, 3}, objects.AccessTierPhone))

		tiers, err := svc.GetAccessMap(ctx, "u1", []int64{1, 2, 3})
		require.NoError(t, err)
		require.Equal(t, map[int64]objects.AccessTier{
			1: objects.AccessTierBoth,
			2: objects.AccessTierFull,
			3: objects.AccessTierPhone,
		}, tiers)
	})

	t.Run("full raises everything", func(t *testing.T) {
		require.NoError(t, svc.RecordAccessBatch(ctx, "u1", []int64{1, 2, 3, 4}, objects.AccessTierFull))

		tiers, err := svc.GetAccessMap(ctx, "u1", []int64{1, 2, 3, 4})
		require.NoError(t, err)

		for id := int64(1); id <= 4; id++ {
			require.Equal(t, objects.AccessTierFull, tiers[id])
		}
	})

	t.Run("full lifts both to full", func(t *testing.T) {
		_, err := svc.RecordAccess(ctx, "u1", 7, objects.AccessTierBoth)
		require.NoError(t, err)

		require.NoError(t, svc.RecordAccessBatch(ctx, "u1", []int64{7}, objects.AccessTierFull))

		tiers, err := svc.GetAccessMap(ctx, "u1", []int64{7})
		require.NoError(t, err)
		require.Equal(t, objects.AccessTierFull, tiers[7])
	})

	t.Run("lower grant keeps both", func(t *testing.T) {
		_, err := svc.RecordAccess(ctx, "u1", 8, objects.AccessTierBoth)
		require.NoError(t, err)

		require.NoError(t, svc.RecordAccessBatch(ctx, "u1", []int64{8}, objects.AccessTierEmail))

		tiers, err := svc.GetAccessMap(ctx, "u1", []int64{8})
		require.NoError(t, err)
		require.Equal(t, objects.AccessTierBoth, tiers[8])
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		require.NoError(t, svc.RecordAccessBatch(ctx, "", nil, objects.AccessTierNone))
	})

	t.Run("none tier is rejected", func(t *testing.T) {
		require.ErrorIs(t, svc.RecordAccessBatch(ctx, "u1", []int64{1}, objects.AccessTierNone), ErrValidation)
	})
}

func TestAccessService_GetAccessMap(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input issues no query", func(t *testing.T) {
		svc := newTestAccessService(t)
		require.NoError(t, svc.Close())

		tiers, err := svc.GetAccessMap(ctx, "u1", nil)
		require.NoError(t, err)
		require.NotNil(t, tiers)
		require.Empty(t, tiers)

		_, err = svc.GetAccessMap(ctx, "u1", []int64{1})
		require.ErrorIs(t, err, ErrStorage)
	})

	t.Run("large input is chunked", func(t *testing.T) {
		svc := newTestAccessService(t)
		ids := seq(1, 1200)

		require.NoError(t, svc.RecordAccessBatch(ctx, "u1", ids, objects.AccessTierEmail))

		tiers, err := svc.GetAccessMap(ctx, "u1", append(ids, 5000))
		require.NoError(t, err)
		require.Len(t, tiers, len(ids))
		require.Equal(t, objects.AccessTierNone, tiers[5000])
	})
}

func TestAccessService_Checkpoint(t *testing.T) {
	svc := newTestAccessService(t)
	ctx := context.Background()

	_, err := svc.RecordAccess(ctx, "u1", 1, objects.AccessTierEmail)
	require.NoError(t, err)

	require.NoError(t, svc.Checkpoint(ctx))

	tiers, err := svc.GetAccessMap(ctx, "u1", []int64{1})
	require.NoError(t, err)
	require.Equal(t, objects.AccessTierEmail, tiers[1])
}
