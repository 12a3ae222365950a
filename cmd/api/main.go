package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/app"
	"github.com/cimillas/ultimate-collectibles/internal/backend"
	"github.com/cimillas/ultimate-collectibles/internal/cache/redis"
	"github.com/cimillas/ultimate-collectibles/internal/clock"
	"github.com/cimillas/ultimate-collectibles/internal/config"
	"github.com/cimillas/ultimate-collectibles/internal/coupon"
	"github.com/cimillas/ultimate-collectibles/internal/eligibility"
	"github.com/cimillas/ultimate-collectibles/internal/logger"
	"github.com/cimillas/ultimate-collectibles/internal/resolver"
	"github.com/cimillas/ultimate-collectibles/internal/storage/postgres"
	transporthttp "github.com/cimillas/ultimate-collectibles/internal/transport/http"
	"github.com/cimillas/ultimate-collectibles/internal/worker"
	"github.com/cimillas/ultimate-collectibles/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const serviceName = "collectibles-api"

func main() {
	cfg, envPath, err := config.Load()
	if err != nil {
		logger.Init(serviceName, false)
		log.Fatal().Err(err).Msg("load config")
	}
	base := logger.Init(serviceName, cfg.Debug)
	if envPath != "" {
		log.Info().Str("path", envPath).Msg("loaded env file")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatal().Err(err).Msg("db ping")
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	client, err := backend.New(cfg.Backend.BaseURL, cfg.Backend.Token, backend.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		log.Fatal().Err(err).Msg("backend client")
	}

	cache, closeCache := resolverCache(startupCtx, cfg)
	defer closeCache()

	policy, err := coupon.ParseLegacyPolicy(cfg.CouponLegacyPolicy)
	if err != nil {
		log.Fatal().Err(err).Str("policy", cfg.CouponLegacyPolicy).Msg("coupon legacy policy")
	}
	matcher := coupon.NewMatcher(policy)
	log.Info().Str("coupon_legacy_policy", string(matcher.Policy())).Msg("coupon matcher ready")

	clk := clock.NewSystem()
	res := resolver.New(client, cache, base.With().Str("component", "resolver").Logger())
	checker := eligibility.NewChecker(client, clk,
		eligibility.WithTimeout(cfg.Eligibility.Timeout),
		eligibility.WithLogger(base.With().Str("component", "eligibility").Logger()),
	)

	reservationRepo := postgres.NewReservationRepository(pool)
	holdingRepo := postgres.NewHoldingRepository(pool)

	reservationSvc := app.NewReservationService(reservationRepo, client, res, clk,
		app.WithReservationLogger(base.With().Str("component", "reservations").Logger()),
	)
	settlementSvc := app.NewSettlementService(reservationRepo, holdingRepo, client, clk,
		app.WithSettlementLogger(base.With().Str("component", "settlement").Logger()),
	)
	dispositionSvc := app.NewDispositionService(holdingRepo, client, checker, matcher, clk,
		app.WithDispositionLogger(base.With().Str("component", "disposition").Logger()),
		app.WithCountdownInterval(cfg.Eligibility.CountdownInterval),
		app.WithRecheckInterval(cfg.Eligibility.RecheckInterval),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/ready", transporthttp.ReadyHandler(pool))
	mux.Handle("/reservations", transporthttp.HandleSubmitBid(reservationSvc))
	mux.Handle("/reservations/", transporthttp.HandleReservation(reservationSvc, settlementSvc))
	mux.Handle("/holdings/", transporthttp.HandleHoldings(dispositionSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.Server.CORSOrigins, mux), base)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := worker.New(stopCtx, base.With().Str("component", "worker").Logger())
	if cfg.SettlementSyncSpec != "" {
		job := worker.SettlementSyncJob(settlementSvc, time.Minute, base.With().Str("component", "settlement-sync").Logger())
		if _, err := runner.Add(cfg.SettlementSyncSpec, job); err != nil {
			log.Fatal().Err(err).Str("spec", cfg.SettlementSyncSpec).Msg("schedule settlement sync")
		}
	} else {
		log.Warn().Msg("settlement sync disabled")
	}
	runner.Start()

	log.Info().Str("port", cfg.Server.Port).Msg("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		log.Info().Msg("shutdown signal received, stopping server")
	}

	runner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}

// resolverCache picks Redis when REDIS_ADDR is set and falls back to the
// in-process LRU when it is unset or unreachable.
func resolverCache(ctx context.Context, cfg *config.Config) (resolver.Cache, func()) {
	if cfg.Redis.Addr != "" {
		rc, err := redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err == nil {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("resolver cache on redis")
			return redis.NewResolutionCache(rc, cfg.Resolver.CacheTTL), func() { _ = rc.Close() }
		}
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-process resolver cache")
	}
	mc, err := resolver.NewMemoryCache(cfg.Resolver.CacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver cache")
	}
	return mc, func() {}
}
