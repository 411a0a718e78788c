package app

import "time"

type stopReason int

const (
	stopNone stopReason = iota
	stopCutoff
	stopSince
)

// watermarkTracker holds the previously committed cutoff and the running
// high-water mark for one run. Remote pages are ordered newest first, so the
// first record at or below the cutoff ends the whole run, not just the page.
type watermarkTracker struct {
	cutoff  *time.Time
	since   *time.Time // optional manual lower bound for bounded re-syncs
	maxSeen *time.Time
}

func newWatermarkTracker(cutoff, since *time.Time) *watermarkTracker {
	t := &watermarkTracker{}
	if cutoff != nil {
		v := *cutoff
		t.cutoff = &v
		seen := v
		t.maxSeen = &seen
	}
	if since != nil {
		v := *since
		t.since = &v
	}
	return t
}

// observe positions one record timestamp against the cutoff and the since
// filter. stopCutoff/stopSince mean: discard this record and everything after
// it. Only records that pass advance maxSeen.
func (t *watermarkTracker) observe(ts time.Time) stopReason {
	if t.cutoff != nil && !ts.After(*t.cutoff) {
		return stopCutoff
	}
	if t.since != nil && !ts.After(*t.since) {
		return stopSince
	}
	if t.maxSeen == nil || ts.After(*t.maxSeen) {
		v := ts
		t.maxSeen = &v
	}
	return stopNone
}

// committedCutoff is the value to persist after a run completes without abort.
// A run that observed zero timestamped records keeps the prior cutoff rather
// than nulling it out.
func (t *watermarkTracker) committedCutoff() *time.Time {
	if t.maxSeen != nil {
		v := *t.maxSeen
		return &v
	}
	return t.cutoff
}
