package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"listingpilot/internal/adapters/observability"
	"listingpilot/internal/adapters/profile"
	redisad "listingpilot/internal/adapters/redis"
	"listingpilot/internal/app"
	"listingpilot/internal/domain"
	"listingpilot/internal/shared"
	mysqlrepo "listingpilot/internal/storage/mysql"
)

func main() {
	var (
		shopFlag  = flag.Int64("shop", 0, "sync a single shop instead of all active shops")
		sinceFlag = flag.String("since", "", "RFC3339 lower bound for a bounded manual re-sync")
	)
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	// global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve()

	var opts app.RunOptions
	if *sinceFlag != "" {
		t, err := time.Parse(time.RFC3339, *sinceFlag)
		if err != nil {
			log.Fatal().Str("since", *sinceFlag).Err(err).Msg("invalid -since")
		}
		u := t.UTC().Truncate(time.Second)
		opts.Since = &u
	}

	log.Info().
		Str("base", cfg.ProfileBase).
		Int("workers", cfg.Workers).
		Int("page_size", cfg.PageSize).
		Msg("syncer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := profile.New(cfg.ProfileBase, cfg.ProfileRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize profile client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	svc := app.NewSyncService(client, repo, repo, cache, cfg.PageSize, cfg.MaxPages)

	shops, err := loadShops(ctx, repo, *shopFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("load shops failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup
	var failed sync.Map

	for _, shop := range shops {
		shop := shop

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(int64(1))

			sum, err := svc.Run(ctx, shop, opts)
			if err != nil {
				failed.Store(shop.ID, err)
				log.Warn().Int64("shop", shop.ID).Err(err).Msg("sync failed")
				return
			}
			log.Info().
				Int64("shop", shop.ID).
				Int("inserted", sum.Inserted).
				Int("updated", sum.Updated).
				Int("skipped", sum.Skipped).
				Msg("sync ok")
		}()
	}

	wg.Wait()

	anyFailed := false
	failed.Range(func(_, _ any) bool { anyFailed = true; return false })
	if anyFailed {
		log.Error().Msg("sync completed with failures")
		os.Exit(1)
	}
	log.Info().Msg("sync completed")
}

func loadShops(ctx context.Context, repo *mysqlrepo.Repo, only int64) ([]domain.Shop, error) {
	if only != 0 {
		s, err := repo.GetShop(ctx, only)
		if err != nil {
			return nil, err
		}
		return []domain.Shop{s}, nil
	}
	return repo.ListShops(ctx)
}
