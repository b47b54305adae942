package biz

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/leadhub/leadhub/internal/objects"
)

func TestUserListService_StoreList(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	t.Run("append is idempotent", func(t *testing.T) {
		inserted, err := stack.lists.StoreList(ctx, "u1", "leads", []int64{1, 2, 3})
		require.NoError(t, err)
		require.Equal(t, 3, inserted)

		inserted, err = stack.lists.StoreList(ctx, "u1", "leads", []int64{2, 3, 4})
		require.NoError(t, err)
		require.Equal(t, 1, inserted)

		inserted, err = stack.lists.StoreList(ctx, "u1", "leads", []int64{4, 4, 1})
		require.NoError(t, err)
		require.Zero(t, inserted)

		ids, err := stack.lists.ListRecordIDs(ctx, "u1", "leads")
		require.NoError(t, err)
		require.Equal(t, []int64{1, 2, 3, 4}, ids)
	})

	t.Run("lists are independent", func(t *testing.T) {
		inserted, err := stack.lists.StoreList(ctx, "u1", "other", []int64{3, 9})
		require.NoError(t, err)
		require.Equal(t, 2, inserted)

		ids, err := stack.lists.ListRecordIDs(ctx, "u1", "other")
		require.NoError(t, err)
		require.Equal(t, []int64{3, 9}, ids)
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		_, err := stack.lists.StoreList(ctx, "", "leads", []int64{1})
		require.ErrorIs(t, err, ErrValidation)

		_, err = stack.lists.StoreList(ctx, "u1", " ", []int64{1})
		require.ErrorIs(t, err, ErrValidation)

		_, err = stack.lists.StoreList(ctx, "u1", "leads", nil)
		require.ErrorIs(t, err, ErrValidation)

		_, err = stack.lists.StoreList(ctx, "u1", "leads", []int64{1, -1})
		require.ErrorIs(t, err, ErrValidation)

		_, err = stack.lists.StoreList(ctx, "../escape", "leads", []int64{1})
		require.ErrorIs(t, err, ErrValidation)
	})
}

func TestUserListService_CreateEmptyList(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	require.NoError(t, stack.lists.CreateEmptyList(ctx, "u1", "empty"))

	err := stack.lists.CreateEmptyList(ctx, "u1", "empty")
	require.ErrorIs(t, err, ErrListExists)
	require.ErrorIs(t, err, ErrAlreadyExists)

	summary, err := stack.lists.GetListSummary(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []objects.ListSummary{{Name: "empty", Total: 0}}, summary)

	ids, err := stack.lists.ListRecordIDs(ctx, "u1", "empty")
	require.NoError(t, err)
	require.Empty(t, ids)

	t.Run("list created by store exists", func(t *testing.T) {
		_, err := stack.lists.StoreList(ctx, "u1", "stored", []int64{5})
		require.NoError(t, err)

		require.ErrorIs(t, stack.lists.CreateEmptyList(ctx, "u1", "stored"), ErrAlreadyExists)
	})

	t.Run("same name for another user", func(t *testing.T) {
		require.NoError(t, stack.lists.CreateEmptyList(ctx, "u2", "empty"))
	})
}

func TestUserListService_GetListSummary(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	t.Run("unknown user has no lists and no file", func(t *testing.T) {
		summary, err := stack.lists.GetListSummary(ctx, "nobody")
		require.NoError(t, err)
		require.NotNil(t, summary)
		require.Empty(t, summary)

		_, err = os.Stat(filepath.Join(stack.dir, "user_lists", "nobody.db"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	_, err := stack.lists.StoreList(ctx, "u1", "zeta", []int64{1, 2})
	require.NoError(t, err)
	require.NoError(t, stack.lists.CreateEmptyList(ctx, "u1", "alpha"))
	_, err = stack.lists.StoreList(ctx, "u1", "mid", []int64{7, 8, 9})
	require.NoError(t, err)

	summary, err := stack.lists.GetListSummary(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []objects.ListSummary{
		{Name: "alpha", Total: 0},
		{Name: "mid", Total: 3},
		{Name: "zeta", Total: 2},
	}, summary)
}

func TestUserListService_ShowList(t *testing.T) {
	stack := newTestStack(t, seq(1, 120)...)
	ctx := context.Background()

	_, err := stack.lists.StoreList(ctx, "u1", "big", lo.Reverse(seq(1, 120)))
	require.NoError(t, err)

	_, err = stack.access.RecordAccess(ctx, "u1", 101, objects.AccessTierEmail)
	require.NoError(t, err)
	_, err = stack.access.RecordAccess(ctx, "u1", 102, objects.AccessTierPhone)
	require.NoError(t, err)

	t.Run("pages are ordered by record id", func(t *testing.T) {
		page1, err := stack.lists.ShowList(ctx, "u1", "big", 1)
		require.NoError(t, err)
		require.Len(t, page1, 50)
		require.Equal(t, int64(1), page1[0].ID)
		require.Equal(t, int64(50), page1[49].ID)

		page3, err := stack.lists.ShowList(ctx, "u1", "big", 3)
		require.NoError(t, err)
		require.Len(t, page3, 20)
		require.Equal(t, int64(101), page3[0].ID)
	})

	t.Run("page below one is the first page", func(t *testing.T) {
		page, err := stack.lists.ShowList(ctx, "u1", "big", 0)
		require.NoError(t, err)
		require.Equal(t, int64(1), page[0].ID)
	})

	t.Run("past the end is empty", func(t *testing.T) {
		page, err := stack.lists.ShowList(ctx, "u1", "big", 4)
		require.NoError(t, err)
		require.NotNil(t, page)
		require.Empty(t, page)
	})

	t.Run("huge page does not wrap around", func(t *testing.T) {
		for _, p := range []int{maxShowListPage, maxShowListPage + 1, math.MaxInt} {
			page, err := stack.lists.ShowList(ctx, "u1", "big", p)
			require.NoError(t, err, "page %d", p)
			require.Empty(t, page, "page %d", p)
		}
	})

	t.Run("missing list is empty", func(t *testing.T) {
		page, err := stack.lists.ShowList(ctx, "u1", "missing", 1)
		require.NoError(t, err)
		require.Empty(t, page)

		page, err = stack.lists.ShowList(ctx, "nobody", "big", 1)
		require.NoError(t, err)
		require.Empty(t, page)
	})

	t.Run("fields are masked by tier", func(t *testing.T) {
		page, err := stack.lists.ShowList(ctx, "u1", "big", 3)
		require.NoError(t, err)

		byID := lo.KeyBy(page, func(r objects.MaskedRecord) int64 { return r.ID })

		require.Equal(t, objects.AccessTierEmail, byID[101].AccessTier)
		require.Equal(t, "p101@example.com", *byID[101].Email)
		require.Nil(t, byID[101].Phone)

		require.Equal(t, objects.AccessTierPhone, byID[102].AccessTier)
		require.Nil(t, byID[102].Email)
		require.Equal(t, "+1-555-0102", *byID[102].Phone)

		require.Equal(t, objects.AccessTierNone, byID[103].AccessTier)
		require.Nil(t, byID[103].Email)
		require.Nil(t, byID[103].Phone)
	})

	t.Run("record store failure surfaces", func(t *testing.T) {
		stack.records.err = fmt.Errorf("%w: people offline", ErrStorage)
		defer func() { stack.records.err = nil }()

		_, err := stack.lists.ShowList(ctx, "u1", "big", 1)
		require.ErrorIs(t, err, ErrStorage)
	})
}

func TestUserListService_ConcurrentWritesSameUser(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			name := fmt.Sprintf("list-%d", i%3)
			if _, err := stack.lists.StoreList(ctx, "u1", name, seq(int64(i*10), int64(i*10+9))); err != nil {
				t.Error(err)
			}
		}()
	}

	wg.Wait()

	summary, err := stack.lists.GetListSummary(ctx, "u1")
	require.NoError(t, err)

	total := lo.SumBy(summary, func(s objects.ListSummary) int { return s.Total })
	require.Equal(t, 100, total)
	require.Len(t, summary, 3)
}

func TestUserListService_CheckpointAndClose(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := stack.lists.StoreList(ctx, user, "leads", []int64{1, 2})
		require.NoError(t, err)
	}

	require.Equal(t, 3, stack.lists.OpenCount())
	require.NoError(t, stack.lists.Checkpoint(ctx))

	require.NoError(t, stack.lists.Close())
	require.Zero(t, stack.lists.OpenCount())

	_, err := stack.lists.ListRecordIDs(ctx, "u2", "leads")
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, stack.lists.Checkpoint(ctx), ErrStorage)
	require.Zero(t, stack.lists.OpenCount())

	require.NoError(t, stack.lists.Close())
}

func TestUserListService_CloseWaitsForRunningOperations(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.lists.StoreList(ctx, "u1", "leads", []int64{1})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	opErr := make(chan error, 1)

	go func() {
		opErr <- stack.lists.do(ctx, "u1", func(ctx context.Context) error {
			close(entered)
			<-release

			db, err := stack.lists.userDB(ctx, "u1", false)
			if err != nil {
				return err
			}

			_, err = queryListIDs(ctx, db, "leads")

			return err
		})
	}()

	<-entered

	closed := make(chan error, 1)

	go func() {
		closed <- stack.lists.Close()
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while an operation was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	require.NoError(t, <-opErr)
	require.NoError(t, <-closed)
	require.Zero(t, stack.lists.OpenCount())
}
