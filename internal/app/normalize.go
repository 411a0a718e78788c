package app

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"listingpilot/internal/domain"
)

// Skip reasons reported in RunSummary.SkipReasons.
const (
	skipMissingIdentifier    = "missing_identifier"
	skipUnparseableTimestamp = "unparseable_timestamp"
)

/********** alias registries (single source of truth) **********/

var reviewAliases = map[string][]string{
	"name":    {"name", "reviewName", "resource_name"},
	"author":  {"reviewer.displayName", "reviewer.display_name", "author", "authorName", "author_name"},
	"rating":  {"starRating", "star_rating", "rating", "score"},
	"comment": {"comment", "text", "review_text", "body"},
	"create":  {"createTime", "create_time", "created_at"},
	"update":  {"updateTime", "update_time", "updated_at"},
}

// replyKeys are the payload keys whose mere presence marks the reply as observed.
var replyKeys = []string{"reviewReply", "review_reply", "reply"}

var replyAliases = map[string][]string{
	"comment": {"comment", "text", "reply_text"},
	"update":  {"updateTime", "update_time", "updated_at"},
}

// starLabels maps the remote's enumerated rating labels to 1..5.
var starLabels = map[string]int{
	"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5,
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// cleanExternalID strips whitespace, control characters and invisible format
// runes (zero-width spaces, BOM, directional marks) from a remote identifier.
func cleanExternalID(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// parseUTC parses a remote timestamp as a UTC instant truncated to whole
// seconds. Truncation here, once, keeps every later comparison symmetric.
func parseUTC(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

// parseRating maps an enumerated label or a numeric value to 1..5.
// Unrecognized values yield nil, never zero.
func parseRating(m map[string]any) *int {
	for _, path := range reviewAliases["rating"] {
		switch v := lookupAny(m, path).(type) {
		case string:
			s := strings.ToUpper(strings.TrimSpace(v))
			if s == "" {
				continue
			}
			if n, ok := starLabels[s]; ok {
				return &n
			}
			if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 5 {
				return &n
			}
		case float64:
			if n := int(v); float64(n) == v && n >= 1 && n <= 5 {
				return &n
			}
		case int:
			if v >= 1 && v <= 5 {
				n := v
				return &n
			}
		}
	}
	return nil
}

/********** normalizer **********/

// normalizeReview converts one raw remote record into its canonical form.
// A non-empty second return is the reject reason; the record then cannot
// participate in change detection or watermark advancement.
func normalizeReview(shopID int64, raw map[string]any, snapshotID string) (domain.CanonicalReview, string) {
	var c domain.CanonicalReview

	// Identifier: last path segment of the resource name, stripped of
	// whitespace/control/invisible runes.
	name := deref(firstNonEmptyAlias(raw, reviewAliases, "name"))
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	id := cleanExternalID(name)
	if id == "" {
		return c, skipMissingIdentifier
	}

	// Creation timestamp is required; without it the row cannot be persisted.
	createdAt, ok := parseUTC(deref(firstNonEmptyAlias(raw, reviewAliases, "create")))
	if !ok {
		return c, skipUnparseableTimestamp
	}

	// Recency: updateTime when the payload carries one, else createTime.
	// A present-but-unparseable updateTime rejects the record: it could not
	// be positioned against the watermark.
	recencyAt := createdAt
	if s := deref(firstNonEmptyAlias(raw, reviewAliases, "update")); s != "" {
		recencyAt, ok = parseUTC(s)
		if !ok {
			return c, skipUnparseableTimestamp
		}
	}

	c = domain.CanonicalReview{
		ShopID:     shopID,
		ExternalID: id,
		Author:     ptrStr(deref(firstNonEmptyAlias(raw, reviewAliases, "author"))),
		Rating:     parseRating(raw),
		Comment:    ptrStr(deref(firstNonEmptyAlias(raw, reviewAliases, "comment"))),
		CreatedAt:  createdAt,
		RecencyAt:  recencyAt,
		Reply:      observeReply(raw),
		SnapshotID: snapshotID,
	}
	return c, ""
}

// observeReply captures the reply tri-state. The reply counts as observed as
// soon as a reply key exists in the payload, even when its value is null or
// empty: that is a legitimate "reply exists with no text" state, distinct
// from "no reply field seen".
func observeReply(raw map[string]any) domain.ReplyObservation {
	for _, k := range replyKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		obs := domain.ReplyObservation{Observed: true}
		if sub, ok := v.(map[string]any); ok {
			obs.Text = ptrStr(deref(firstNonEmptyAlias(sub, replyAliases, "comment")))
			if ts, ok := parseUTC(deref(firstNonEmptyAlias(sub, replyAliases, "update"))); ok {
				obs.UpdatedAt = &ts
			}
		}
		return obs
	}
	return domain.ReplyObservation{}
}
