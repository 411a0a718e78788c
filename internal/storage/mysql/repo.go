package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"listingpilot/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func reviewKey(shopID int64, externalID string) string {
	return fmt.Sprintf("%d|%s", shopID, externalID)
}

// UpsertReviews applies the batch as one transaction. The ON DUPLICATE KEY
// primitive does not report which branch it took, so the pre-batch key set is
// read inside the same transaction to classify insert vs update.
func (r *Repo) UpsertReviews(ctx context.Context, batch []domain.CanonicalReview) (domain.UpsertResult, error) {
	if len(batch) == 0 {
		return domain.UpsertResult{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := existingKeys(ctx, tx, batch)
	if err != nil {
		return domain.UpsertResult{}, err
	}

	values := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*11)
	for _, c := range batch {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			c.ShopID,
			c.ExternalID,
			valStr(c.Author),
			valInt(c.Rating),
			valStr(c.Comment),
			c.CreatedAt.UTC(),
			c.RecencyAt.UTC(),
			valStr(c.Reply.Text),
			valTime(c.Reply.UpdatedAt),
			c.Reply.Observed,
			c.SnapshotID,
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return domain.UpsertResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UpsertResult{}, err
	}

	var res domain.UpsertResult
	counted := make(map[string]struct{}, len(batch))
	for _, c := range batch {
		k := reviewKey(c.ShopID, c.ExternalID)
		if _, dup := counted[k]; dup {
			continue
		}
		counted[k] = struct{}{}
		if _, ok := existing[k]; ok {
			res.Updated++
		} else {
			res.Inserted++
		}
	}
	return res, nil
}

func existingKeys(ctx context.Context, tx *sql.Tx, batch []domain.CanonicalReview) (map[string]struct{}, error) {
	tuples := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*2)
	for _, c := range batch {
		tuples = append(tuples, "(?,?)")
		args = append(args, c.ShopID, c.ExternalID)
	}
	q := "SELECT shop_id, external_id FROM reviews WHERE (shop_id, external_id) IN (" +
		strings.Join(tuples, ",") + ")"
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{}, len(batch))
	for rows.Next() {
		var shopID int64
		var externalID string
		if err := rows.Scan(&shopID, &externalID); err != nil {
			return nil, err
		}
		out[reviewKey(shopID, externalID)] = struct{}{}
	}
	return out, rows.Err()
}

func (r *Repo) GetReview(ctx context.Context, shopID int64, externalID string) (*domain.Review, error) {
	row := r.db.QueryRowContext(ctx, getReviewSQL, shopID, externalID)
	rv, err := scanReview(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *Repo) ListReviews(ctx context.Context, shopID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, shopID, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: out}, nil
}

func scanReview(scan func(...any) error) (domain.Review, error) {
	var rv domain.Review
	var (
		author, comment, replyText sql.NullString
		rating                     sql.NullInt64
		replyUpdatedAt             sql.NullTime
	)
	if err := scan(
		&rv.ShopID,
		&rv.ExternalID,
		&author,
		&rating,
		&comment,
		&rv.ContentCreatedAt,
		&rv.ContentUpdatedAt,
		&replyText,
		&replyUpdatedAt,
		&rv.ReplyPresent,
		&rv.SnapshotID,
	); err != nil {
		return domain.Review{}, err
	}
	if author.Valid {
		s := author.String
		rv.Author = &s
	}
	if rating.Valid {
		n := int(rating.Int64)
		rv.Rating = &n
	}
	if comment.Valid {
		s := comment.String
		rv.Comment = &s
	}
	if replyText.Valid {
		s := replyText.String
		rv.ReplyText = &s
	}
	if replyUpdatedAt.Valid {
		t := replyUpdatedAt.Time
		rv.ReplyUpdatedAt = &t
	}
	return rv, nil
}

func (r *Repo) GetWatermark(ctx context.Context, shopID int64) (domain.SyncWatermark, error) {
	row := r.db.QueryRowContext(ctx, getWatermarkSQL, shopID)

	wm := domain.SyncWatermark{ShopID: shopID}
	var cutoff, startedAt, finishedAt sql.NullTime
	err := row.Scan(&wm.ShopID, &cutoff, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return wm, nil // first sync
	}
	if err != nil {
		return domain.SyncWatermark{}, err
	}
	if cutoff.Valid {
		t := cutoff.Time
		wm.Cutoff = &t
	}
	if startedAt.Valid {
		t := startedAt.Time
		wm.RunStartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		wm.RunFinishedAt = &t
	}
	return wm, nil
}

func (r *Repo) SaveWatermark(ctx context.Context, wm domain.SyncWatermark) error {
	_, err := r.db.ExecContext(ctx, saveWatermarkSQL,
		wm.ShopID,
		valTime(wm.Cutoff),
		valTime(wm.RunStartedAt),
		valTime(wm.RunFinishedAt),
	)
	return err
}

func (r *Repo) GetShop(ctx context.Context, id int64) (domain.Shop, error) {
	var s domain.Shop
	err := r.db.QueryRowContext(ctx, getShopSQL, id).Scan(&s.ID, &s.Name, &s.RemoteRef, &s.Active)
	if err == sql.ErrNoRows {
		return domain.Shop{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Shop{}, err
	}
	return s, nil
}

func (r *Repo) ListShops(ctx context.Context) ([]domain.Shop, error) {
	rows, err := r.db.QueryContext(ctx, listShopsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Shop
	for rows.Next() {
		var s domain.Shop
		if err := rows.Scan(&s.ID, &s.Name, &s.RemoteRef, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// BearerToken implements domain.TokenSource. Tokens are written by the OAuth
// refresher elsewhere; here they are only read, and an expired or missing row
// is a precondition failure for the run.
func (r *Repo) BearerToken(ctx context.Context, shopID int64) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, bearerTokenSQL, shopID).Scan(&token)
	if err == sql.ErrNoRows {
		return "", domain.ErrNoToken
	}
	if err != nil {
		return "", err
	}
	return token, nil
}
