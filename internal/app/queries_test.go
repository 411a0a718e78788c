package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"listingpilot/internal/domain"
)

// memCache stores JSON blobs like the redis adapter does.
type memCache struct {
	m map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, _ := json.Marshal(v)
	c.m[key] = b
	return nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	delete(c.m, key)
	return nil
}

// countingStore tracks how many reads hit the repository.
type countingStore struct {
	*fakeStore
	listCalls int
	wmCalls   int
}

func (c *countingStore) ListReviews(ctx context.Context, shopID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	c.listCalls++
	return c.fakeStore.ListReviews(ctx, shopID, pg)
}

func (c *countingStore) GetWatermark(ctx context.Context, shopID int64) (domain.SyncWatermark, error) {
	c.wmCalls++
	return c.fakeStore.GetWatermark(ctx, shopID)
}

func TestQueries_ListReviewsCachesSecondRead(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	store.reviews[storeKey(1, "r1")] = domain.Review{
		ShopID:     1,
		ExternalID: "r1",
		Comment:    pstr("nice"),
	}
	q := NewQueryService(store, newMemCache(), time.Minute)
	ctx := context.Background()

	first, err := q.ListReviews(ctx, 1, domain.PageQuery{Limit: 50})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(first.Items) != 1 || first.Items[0].ExternalID != "r1" {
		t.Fatalf("unexpected page: %+v", first)
	}

	second, err := q.ListReviews(ctx, 1, domain.PageQuery{Limit: 50})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(second.Items) != 1 {
		t.Fatalf("unexpected cached page: %+v", second)
	}
	if store.listCalls != 1 {
		t.Fatalf("expected one repo read, got %d", store.listCalls)
	}
}

func TestQueries_ListReviewsDistinctLimitsDistinctKeys(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	q := NewQueryService(store, newMemCache(), time.Minute)
	ctx := context.Background()

	if _, err := q.ListReviews(ctx, 1, domain.PageQuery{Limit: 50}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := q.ListReviews(ctx, 1, domain.PageQuery{Limit: 100}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if store.listCalls != 2 {
		t.Fatalf("different limits must not share a cache entry, got %d reads", store.listCalls)
	}
}

func TestQueries_SyncStatusReflectsWatermark(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	cutoff := mkTime(10)
	started := mkTime(11)
	finished := mkTime(12)
	store.wm = domain.SyncWatermark{ShopID: 1, Cutoff: &cutoff, RunStartedAt: &started, RunFinishedAt: &finished}

	q := NewQueryService(store, newMemCache(), time.Minute)
	ctx := context.Background()

	st, err := q.SyncStatus(ctx, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if st.ShopID != 1 || st.Cutoff == nil || !st.Cutoff.Equal(cutoff) {
		t.Fatalf("unexpected status: %+v", st)
	}

	if _, err := q.SyncStatus(ctx, 1); err != nil {
		t.Fatalf("err: %v", err)
	}
	if store.wmCalls != 1 {
		t.Fatalf("expected one watermark read, got %d", store.wmCalls)
	}
}

func TestQueries_NeverSyncedShopHasEmptyStatus(t *testing.T) {
	store := &countingStore{fakeStore: newFakeStore()}
	q := NewQueryService(store, newMemCache(), time.Minute)

	st, err := q.SyncStatus(context.Background(), 9)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if st.Cutoff != nil || st.RunStartedAt != nil {
		t.Fatalf("expected empty status, got %+v", st)
	}
}
