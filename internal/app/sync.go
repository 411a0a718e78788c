package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"listingpilot/internal/adapters/observability"
	"listingpilot/internal/domain"
)

// RunState is the terminal state of one sync run.
type RunState string

const (
	RunStateCommitted RunState = "committed"
	RunStateAborted   RunState = "aborted"
)

// RunSummary is the per-run accumulator returned to the invoking scheduler or
// CLI. Counters live here, not in package state, so concurrent shop runs
// cannot corrupt each other.
type RunSummary struct {
	ShopID             int64
	State              RunState
	Pages              int
	Fetched            int
	Inserted           int
	Updated            int
	Skipped            int
	SkipReasons        map[string]int
	StoppedByWatermark bool
	StoppedBySince     bool
	StartedAt          time.Time
	FinishedAt         time.Time
}

func (s *RunSummary) skip(reason string) {
	s.Skipped++
	if s.SkipReasons == nil {
		s.SkipReasons = map[string]int{}
	}
	s.SkipReasons[reason]++
}

// RunOptions tunes one invocation. Since bounds a manual re-sync: records at
// or before it stop the page loop the same way the cutoff does.
type RunOptions struct {
	Since *time.Time
}

type SyncService struct {
	source   domain.ReviewSource
	repo     domain.ReviewRepository
	tokens   domain.TokenSource
	cache    domain.Cache
	pageSize int
	maxPages int
}

func NewSyncService(src domain.ReviewSource, repo domain.ReviewRepository, tokens domain.TokenSource, cache domain.Cache, pageSize, maxPages int) *SyncService {
	if pageSize <= 0 {
		pageSize = 50
	}
	if maxPages <= 0 {
		maxPages = 50
	}
	return &SyncService{source: src, repo: repo, tokens: tokens, cache: cache, pageSize: pageSize, maxPages: maxPages}
}

// Run executes one incremental sync for the shop: page-fetch loop with
// watermark early termination, per-record normalization and change detection,
// one atomic batch upsert, then watermark commit. The run is re-runnable:
// every write is an idempotent upsert and the cutoff only advances after a
// complete, successful run.
func (s *SyncService) Run(ctx context.Context, shop domain.Shop, opts RunOptions) (RunSummary, error) {
	started := time.Now().UTC().Truncate(time.Second)
	sum := RunSummary{ShopID: shop.ID, StartedAt: started}

	// Preconditions: these fail before the run starts, so the watermark row
	// is not touched at all.
	if shop.RemoteRef == "" {
		return sum, fmt.Errorf("shop %d: %w", shop.ID, domain.ErrNoRemoteRef)
	}
	token, err := s.tokens.BearerToken(ctx, shop.ID)
	if err != nil {
		return sum, fmt.Errorf("shop %d: %w", shop.ID, err)
	}
	if token == "" {
		return sum, fmt.Errorf("shop %d: %w", shop.ID, domain.ErrNoToken)
	}
	wm, err := s.repo.GetWatermark(ctx, shop.ID)
	if err != nil {
		return sum, fmt.Errorf("load watermark for shop %d: %w", shop.ID, err)
	}

	tracker := newWatermarkTracker(wm.Cutoff, opts.Since)
	snapshotID := fmt.Sprintf("shop-%d-%d", shop.ID, started.Unix())
	var batch []domain.CanonicalReview
	seen := map[string]struct{}{}

	pageToken := ""
fetching:
	for page := 0; page < s.maxPages; page++ {
		pg, err := s.source.FetchPage(ctx, token, shop.RemoteRef, pageToken, s.pageSize)
		if err != nil {
			return s.abort(ctx, wm, &sum, fmt.Errorf("fetch page %d for shop %d: %w", page+1, shop.ID, err))
		}
		sum.Pages++

		for _, raw := range pg.Records {
			sum.Fetched++

			c, reject := normalizeReview(shop.ID, raw, snapshotID)
			if reject != "" {
				sum.skip(reject)
				log.Debug().Int64("shop", shop.ID).Str("reason", reject).Msg("record skipped")
				continue
			}

			switch tracker.observe(c.RecencyAt) {
			case stopCutoff:
				sum.StoppedByWatermark = true
				break fetching
			case stopSince:
				sum.StoppedBySince = true
				break fetching
			}

			// The remote may repeat a record across page boundaries; newest
			// first means the first occurrence wins.
			if _, dup := seen[c.ExternalID]; dup {
				continue
			}
			seen[c.ExternalID] = struct{}{}

			cur, err := s.repo.GetReview(ctx, shop.ID, c.ExternalID)
			if err != nil {
				return s.abort(ctx, wm, &sum, fmt.Errorf("read review %s for shop %d: %w", c.ExternalID, shop.ID, err))
			}
			if ch := detectChange(c, cur); ch.write {
				batch = append(batch, c)
				log.Debug().Int64("shop", shop.ID).Str("review", c.ExternalID).Strs("reasons", ch.reasons).Msg("change detected")
			}
		}

		if pg.NextPageToken == "" {
			break
		}
		pageToken = pg.NextPageToken
	}

	// Reconcile: one atomic batch; either all of it lands or none of it does,
	// and in the latter case the cutoff stays where it was.
	if len(batch) > 0 {
		res, err := s.repo.UpsertReviews(ctx, batch)
		if err != nil {
			return s.abort(ctx, wm, &sum, fmt.Errorf("upsert %d reviews for shop %d: %w", len(batch), shop.ID, err))
		}
		sum.Inserted = res.Inserted
		sum.Updated = res.Updated
	}

	// Commit: the cutoff advances only now, and only to what records justify.
	sum.FinishedAt = time.Now().UTC().Truncate(time.Second)
	wm.Cutoff = tracker.committedCutoff()
	wm.RunStartedAt = &sum.StartedAt
	wm.RunFinishedAt = &sum.FinishedAt
	if err := s.repo.SaveWatermark(ctx, wm); err != nil {
		sum.State = RunStateAborted
		observability.ObserveSyncRun(string(RunStateAborted), sum.FinishedAt.Sub(started))
		return sum, fmt.Errorf("commit watermark for shop %d: %w", shop.ID, err)
	}
	sum.State = RunStateCommitted

	if s.cache != nil && sum.Inserted+sum.Updated > 0 {
		s.invalidateReviews(ctx, shop.ID)
	}

	observability.ObserveSyncRun(string(RunStateCommitted), sum.FinishedAt.Sub(started))
	observability.ObserveSyncRecords("inserted", sum.Inserted)
	observability.ObserveSyncRecords("updated", sum.Updated)
	observability.ObserveSyncRecords("skipped", sum.Skipped)

	log.Info().
		Int64("shop", shop.ID).
		Int("pages", sum.Pages).
		Int("fetched", sum.Fetched).
		Int("inserted", sum.Inserted).
		Int("updated", sum.Updated).
		Int("skipped", sum.Skipped).
		Bool("stopped_by_watermark", sum.StoppedByWatermark).
		Msg("sync committed")
	return sum, nil
}

// abort ends the run without advancing the cutoff. Run times are still
// recorded so operators can see the attempt; retry is the next scheduled
// invocation.
func (s *SyncService) abort(ctx context.Context, wm domain.SyncWatermark, sum *RunSummary, cause error) (RunSummary, error) {
	sum.State = RunStateAborted
	sum.FinishedAt = time.Now().UTC().Truncate(time.Second)
	wm.RunStartedAt = &sum.StartedAt
	wm.RunFinishedAt = &sum.FinishedAt
	if err := s.repo.SaveWatermark(ctx, wm); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Int64("shop", sum.ShopID).Err(err).Msg("record aborted run failed")
	}
	observability.ObserveSyncRun(string(RunStateAborted), sum.FinishedAt.Sub(sum.StartedAt))
	log.Warn().Int64("shop", sum.ShopID).Err(cause).Msg("sync aborted")
	return *sum, cause
}

// invalidate the most common review cache variants after new writes landed.
func (s *SyncService) invalidateReviews(ctx context.Context, shopID int64) {
	for _, lim := range []int{50, 100, 200} {
		_ = s.cache.Del(ctx, fmt.Sprintf("reviews:%d:%d", shopID, lim))
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("syncstatus:%d", shopID))
}
