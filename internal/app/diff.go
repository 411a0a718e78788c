package app

import (
	"time"

	"listingpilot/internal/domain"
)

// Change reasons reported per written record.
const (
	reasonNewRecord      = "new_record"
	reasonContentChanged = "content_changed"
	reasonReplyChanged   = "reply_changed"
)

type changeSet struct {
	write   bool
	reasons []string
}

// detectChange decides whether an incoming canonical record requires a write
// against its stored counterpart, on two independent axes:
//
//   - content: the recency timestamp moved strictly forward, or author/rating/
//     comment differ (empty string and nil compare equal);
//   - reply: evaluated only when the incoming payload observed a reply at all,
//     and triggered by a text difference alone — a reply can change while the
//     review's own updateTime stays frozen.
//
// Watermark advancement is a separate decision; an unchanged record is never
// written even when it moved maxSeen.
func detectChange(in domain.CanonicalReview, cur *domain.Review) changeSet {
	if cur == nil {
		return changeSet{write: true, reasons: []string{reasonNewRecord}}
	}

	var cs changeSet
	if in.RecencyAt.After(cur.ContentUpdatedAt.UTC().Truncate(time.Second)) ||
		deref(in.Author) != deref(cur.Author) ||
		derefInt(in.Rating) != derefInt(cur.Rating) ||
		deref(in.Comment) != deref(cur.Comment) {
		cs.write = true
		cs.reasons = append(cs.reasons, reasonContentChanged)
	}

	if in.Reply.Observed && deref(in.Reply.Text) != deref(cur.ReplyText) {
		cs.write = true
		cs.reasons = append(cs.reasons, reasonReplyChanged)
	}
	return cs
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
