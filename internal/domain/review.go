package domain

import "time"

// Review is the locally stored, authoritative copy of one remote review.
// Identity is (ShopID, ExternalID); rows are never deleted by the sync engine.
type Review struct {
	ShopID           int64
	ExternalID       string
	Author           *string
	Rating           *int // 1..5, nil when the remote rating was absent or unrecognized
	Comment          *string
	ContentCreatedAt time.Time // immutable once set
	ContentUpdatedAt time.Time // monotonically non-decreasing
	ReplyText        *string
	ReplyUpdatedAt   *time.Time
	ReplyPresent     bool // whether a reply field was observed in the last sync that touched this row
	SnapshotID       string
}

// ReplyObservation carries the owner-reply portion of an incoming record as a
// tri-state: not observed (Observed=false), observed with no text (Observed=true,
// Text nil or empty), or observed with text. A plain nullable string cannot
// distinguish "the payload omitted the reply" from "the reply was cleared".
type ReplyObservation struct {
	Observed  bool
	Text      *string
	UpdatedAt *time.Time
}

// CanonicalReview is the normalized, comparable form of one remote review,
// independent of the wire payload it arrived in.
type CanonicalReview struct {
	ShopID     int64
	ExternalID string
	Author     *string
	Rating     *int
	Comment    *string
	CreatedAt  time.Time // remote createTime, UTC, whole seconds
	RecencyAt  time.Time // updateTime when present, else createTime; UTC, whole seconds
	Reply      ReplyObservation
	SnapshotID string // set on insert only
}

// Shop is one tenant: a local business whose remote profile we sync against.
type Shop struct {
	ID        int64
	Name      string
	RemoteRef string // remote collection resource, e.g. "accounts/1017/locations/2243"
	Active    bool
}
