package api

import (
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/handler"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/middleware"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/spec"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/asset"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/config"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/idempotency"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	store     *repository.Store
	idemStore *idempotency.Store
	redis     redis.Cmdable
	notifier  service.Notifier
}

func NewRouter(cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool, store *repository.Store, idemStore *idempotency.Store, redisClient redis.Cmdable, notifier service.Notifier) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		store:     store,
		idemStore: idemStore,
		redis:     redisClient,
		notifier:  notifier,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Services
	registry := asset.NewRegistry(api.store, api.cfg.AssetCacheTTL)
	walletSvc := service.NewWalletService(api.store, registry)
	trxSvc := service.NewTrxService(api.store, registry, api.notifier).
		WithRetryPolicy(api.cfg.TrxRetryAttempts, api.cfg.TrxRetryBackoff)
	lockSvc := service.NewLockService(api.store, registry)
	prizeSvc := service.NewPrizeService(api.store, registry, trxSvc, api.notifier)
	referralSvc := service.NewReferralService(api.store)
	distributionSvc := service.NewDistributionService(api.store, registry, trxSvc, api.notifier, api.cfg.MaxReturnPercent)
	fillSvc := service.NewFillWebhookService(distributionSvc, api.cfg.FillHMACKey, api.cfg.FillSkipSignature)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.pool, api.redis)
	authHandler := handler.NewAuthHandler(api.store)
	accountHandler := handler.NewAccountHandler(api.store, referralSvc)
	assetHandler := handler.NewAssetHandler(registry)
	walletHandler := handler.NewWalletHandler(walletSvc)
	lockHandler := handler.NewLockHandler(lockSvc, walletSvc)
	trxHandler := handler.NewTrxHandler(trxSvc, walletSvc)
	prizeHandler := handler.NewPrizeHandler(prizeSvc)
	referralHandler := handler.NewReferralHandler(referralSvc)
	fillHandler := handler.NewFillWebhookHandler(fillSvc)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Operational endpoints
	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Method("GET", "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/accounts", accountHandler.CreateAccount)
		r.Get("/v1/referrals/{code}", referralHandler.GetReferral)
		r.Post("/v1/webhooks/fill", fillHandler.HandleFillWebhook)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Accounts
		r.Get("/v1/accounts/{id}", accountHandler.GetAccount)

		// Assets
		r.Get("/v1/assets", assetHandler.ListAssets)
		r.Get("/v1/assets/{symbol}", assetHandler.GetAsset)
		r.With(middleware.RequireRole("admin")).Post("/v1/assets", assetHandler.CreateAsset)

		// Wallets
		r.Post("/v1/wallets", walletHandler.CreateWallet)
		r.Get("/v1/wallets/{id}/balance", walletHandler.GetBalance)
		r.Get("/v1/wallets/{id}/statement", walletHandler.GetStatement)

		// Balance locks
		r.With(idem).Post("/v1/locks", lockHandler.AcquireLock)
		r.Post("/v1/locks/{id}/release", lockHandler.ReleaseLock)
		r.Get("/v1/locks/{id}", lockHandler.GetLock)

		// Transactions
		r.With(idem).Post("/v1/transactions", trxHandler.PostTransfer)
		r.Get("/v1/transactions/group/{groupID}", trxHandler.GetGroup)

		// Prizes
		r.With(middleware.RequireRole("admin"), idem).Post("/v1/prizes", prizeHandler.AwardPrize)
		r.Post("/v1/prizes/{id}/redeem", prizeHandler.RedeemPrize)
		r.Get("/v1/prizes/{id}", prizeHandler.GetPrize)

		// Referrals
		r.Post("/v1/referrals", referralHandler.CreateReferral)
		r.Post("/v1/referrals/apply", referralHandler.ApplyReferral)
		r.Patch("/v1/referrals/{id}/share", referralHandler.SetShare)
	})

	return r
}
