package domain

import "time"

// SyncWatermark is the per-shop sync progress row. Cutoff is the latest remote
// record timestamp confirmed fully processed by a completed run; nil means no
// successful run yet (first sync scans everything). Cutoff only moves forward.
type SyncWatermark struct {
	ShopID        int64
	Cutoff        *time.Time
	RunStartedAt  *time.Time
	RunFinishedAt *time.Time
}

// UpsertResult reports, for one batch upsert, how many rows were freshly
// inserted versus modified in place.
type UpsertResult struct {
	Inserted int
	Updated  int
}
