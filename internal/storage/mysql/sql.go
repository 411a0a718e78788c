package mysql

// Note: `comment` is safe unquoted, but keep the column list in one place.
const insertReviewsPrefix = "INSERT INTO reviews\n" +
	"  (shop_id, external_id, author, rating, comment, content_created_at, content_updated_at,\n" +
	"   reply_text, reply_updated_at, reply_present, snapshot_id)\nVALUES "

// content_created_at and snapshot_id are insert-only. Reply columns only move
// when the incoming row actually observed a reply; an omitted reply sub-object
// means "unknown", never "removed". content_updated_at never goes backwards.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author             = VALUES(author),\n" +
	"  rating             = VALUES(rating),\n" +
	"  comment            = VALUES(comment),\n" +
	"  content_updated_at = GREATEST(reviews.content_updated_at, VALUES(content_updated_at)),\n" +
	"  reply_text         = IF(VALUES(reply_present), VALUES(reply_text), reviews.reply_text),\n" +
	"  reply_updated_at   = IF(VALUES(reply_present), VALUES(reply_updated_at), reviews.reply_updated_at),\n" +
	"  reply_present      = IF(VALUES(reply_present), VALUES(reply_present), reviews.reply_present)\n"

const getReviewSQL = `
SELECT shop_id, external_id, author, rating, comment,
       content_created_at, content_updated_at,
       reply_text, reply_updated_at, reply_present, snapshot_id
FROM reviews
WHERE shop_id = ? AND external_id = ?
`

const listReviewsSQL = `
SELECT shop_id, external_id, author, rating, comment,
       content_created_at, content_updated_at,
       reply_text, reply_updated_at, reply_present, snapshot_id
FROM reviews
WHERE shop_id = ?
ORDER BY content_created_at DESC, id DESC
LIMIT ?
`

const getWatermarkSQL = `
SELECT shop_id, cutoff, run_started_at, run_finished_at
FROM sync_watermarks
WHERE shop_id = ?
`

// The CASE keeps the cutoff monotonic at the storage layer too: a NULL
// incoming cutoff never clears a committed one, and an older incoming cutoff
// never wins over a newer stored one.
const saveWatermarkSQL = `
INSERT INTO sync_watermarks (shop_id, cutoff, run_started_at, run_finished_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  cutoff = CASE
    WHEN VALUES(cutoff) IS NULL THEN sync_watermarks.cutoff
    WHEN sync_watermarks.cutoff IS NULL THEN VALUES(cutoff)
    ELSE GREATEST(sync_watermarks.cutoff, VALUES(cutoff))
  END,
  run_started_at  = VALUES(run_started_at),
  run_finished_at = VALUES(run_finished_at)
`

const getShopSQL = `
SELECT id, name, remote_ref, active FROM shops WHERE id = ?
`

const listShopsSQL = `
SELECT id, name, remote_ref, active FROM shops WHERE active = 1 ORDER BY id
`

const bearerTokenSQL = `
SELECT access_token FROM oauth_tokens
WHERE shop_id = ? AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())
`
