package app

import (
	"context"
	"fmt"
	"time"

	"listingpilot/internal/domain"
)

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) ListReviews(ctx context.Context, shopID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	key := fmt.Sprintf("reviews:%d:%d", shopID, pg.Limit)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	rs, err := s.repo.ListReviews(ctx, shopID, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy the slice to avoid aliasing the repo's backing array
	cp := deepCopyReviewsPage(rs)
	_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	return cp, nil
}

func (s *QueryService) SyncStatus(ctx context.Context, shopID int64) (domain.SyncStatus, error) {
	key := fmt.Sprintf("syncstatus:%d", shopID)
	var out domain.SyncStatus
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	wm, err := s.repo.GetWatermark(ctx, shopID)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	out = domain.SyncStatus{
		ShopID:        shopID,
		Cutoff:        wm.Cutoff,
		RunStartedAt:  wm.RunStartedAt,
		RunFinishedAt: wm.RunFinishedAt,
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	var out domain.ReviewsPage
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
