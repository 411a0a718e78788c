package domain

import (
	"context"
	"time"
)

type ReviewRepository interface {
	// Write paths
	// UpsertReviews applies the batch as one atomic set-or-update keyed on
	// (ShopID, ExternalID). SnapshotID and ContentCreatedAt are set on insert
	// only; reply columns are touched only for records whose Reply was observed.
	UpsertReviews(ctx context.Context, batch []CanonicalReview) (UpsertResult, error)
	SaveWatermark(ctx context.Context, wm SyncWatermark) error

	// Read paths
	GetReview(ctx context.Context, shopID int64, externalID string) (*Review, error)
	ListReviews(ctx context.Context, shopID int64, pg PageQuery) (ReviewsPage, error)
	GetWatermark(ctx context.Context, shopID int64) (SyncWatermark, error)
	GetShop(ctx context.Context, id int64) (Shop, error)
	ListShops(ctx context.Context) ([]Shop, error)
}

// ReviewSource yields successive pages of raw review records for a remote
// collection, newest first. An empty next-page token ends the sequence.
type ReviewSource interface {
	FetchPage(ctx context.Context, token, collection, pageToken string, pageSize int) (ReviewPage, error)
}

type ReviewPage struct {
	Records       []map[string]any
	NextPageToken string
}

// TokenSource supplies the bearer credential for a shop. The token lifecycle
// (refresh, consent) is owned elsewhere; this is read-only.
type TokenSource interface {
	BearerToken(ctx context.Context, shopID int64) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Read models & queries

type PageQuery struct {
	Limit int
	Sort  string
}

type ReviewsPage struct {
	Items []Review
}

// SyncStatus is the read-side view of a shop's sync progress.
type SyncStatus struct {
	ShopID        int64      `json:"shop_id"`
	Cutoff        *time.Time `json:"cutoff,omitempty"`
	RunStartedAt  *time.Time `json:"run_started_at,omitempty"`
	RunFinishedAt *time.Time `json:"run_finished_at,omitempty"`
}
