package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	httpmetrics "promoHub/app/echo-server/metrics"
	"promoHub/app/echo-server/router"
	"promoHub/business/allocation"
	"promoHub/business/dispatch"
	"promoHub/business/eligibility"
	"promoHub/business/history"
	"promoHub/business/selector"
	"promoHub/business/ticketing"
	"promoHub/business/wallet"
	"promoHub/internal/middleware"
	"promoHub/internal/repository/notification"
	psqlRepo "promoHub/internal/repository/postgres"
	redisRepo "promoHub/internal/repository/redis"
	"promoHub/internal/rest"
	"promoHub/pkg/config"
	"promoHub/pkg/database"
	redisClient "promoHub/pkg/database/redis"
	"promoHub/pkg/logger"
	"promoHub/pkg/metrics"
	"promoHub/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting promoHub", "version", cfg.App.Version, "environment", cfg.App.Environment)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	logger.Info("Database connected successfully", "driver", cfg.Database.Driver)

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisClient.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer func() { _ = redisClient.CloseRedisClient(rdb) }()
		logger.Info("Redis connected successfully")
	}

	// Init repo
	txManager := psqlRepo.NewTxManager(db, cfg.Allocation.TxTimeout)
	poolRepo := psqlRepo.NewPoolRepository(db)
	unitRepo := psqlRepo.NewRewardUnitRepository(db)
	principalRepo := psqlRepo.NewPrincipalRepository(db)
	attemptRepo := psqlRepo.NewAttemptRepository(db)
	grantRepo := psqlRepo.NewBonusGrantRepository(db)
	walletRepo := psqlRepo.NewWalletRepository(db)
	ticketRepo := psqlRepo.NewTicketRepository(db)

	if cfg.Allocation.SeedPath != "" {
		seed, err := config.LoadSeed(cfg.Allocation.SeedPath)
		if err != nil {
			logger.Fatal("Failed to load pool seed", "path", cfg.Allocation.SeedPath, "error", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = applySeed(ctx, seed, txManager, poolRepo, unitRepo, principalRepo)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply pool seed", "error", err)
		}
	}

	// Winners feed
	hub := notification.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	metrics.Init()
	httpmetrics.Init(hub.Dropped)

	// Init service
	ledger := wallet.NewLedger(walletRepo, txManager)
	tickets := ticketing.NewTicketingService(ticketRepo, txManager)
	historyService := history.NewHistoryService(attemptRepo, unitRepo)

	allocationService := allocation.NewAllocationService(allocation.Deps{
		Tx:          txManager,
		Pools:       poolRepo,
		Principals:  principalRepo,
		Units:       unitRepo,
		Attempts:    attemptRepo,
		Tickets:     tickets,
		Grants:      grantRepo,
		Eligibility: eligibility.NewEvaluator(attemptRepo, grantRepo, eligibility.WithLocation(cfg.Allocation.Location())),
		Selector:    selector.New(selector.NewSource()),
		Dispatcher:  dispatch.NewDispatcher(ledger, tickets, grantRepo, dispatch.WithBonusExpiry(cfg.Allocation.BonusExpiry)),
		Locker:      poolLocker(cfg, rdb),
		Broadcaster: hub,
	}, allocation.WithTxTimeout(cfg.Allocation.TxTimeout))

	// Init handler
	allocationHandler := rest.NewAllocationHandler(allocationService, cfg.Allocation.TxTimeout)
	historyHandler := rest.NewHistoryHandler(historyService)
	accountHandler := rest.NewAccountHandler(ledger, tickets)
	winnersHandler := rest.NewWinnersHandler(hub, cfg.Server.AllowedOrigins)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.TraceID())
	e.Use(httpmetrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupPoolRoutes(api, allocationHandler, historyHandler, attemptThrottle(cfg, rdb))
	router.SetupMeRoutes(api, historyHandler, accountHandler)
	router.SetupAdminRoutes(api, historyHandler)
	router.SetupWinnersRoutes(e, winnersHandler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	stopHub()

	logger.Info("Server stopped")
}

func poolLocker(cfg *config.Config, rdb *goredis.Client) allocation.PoolLocker {
	switch cfg.Allocation.PoolLock {
	case "redis":
		logger.Info("Using redis pool lock", "ttl", cfg.Allocation.PoolLockTTL)
		return redisRepo.NewPoolLocker(rdb, cfg.Allocation.PoolLockTTL)
	case "none":
		return allocation.NoopLocker{}
	default:
		return allocation.NewKeyedLocker()
	}
}

// attemptThrottle shares the budget across instances when redis is enabled.
func attemptThrottle(cfg *config.Config, rdb *goredis.Client) echo.MiddlewareFunc {
	if rdb != nil {
		return middleware.Throttle(redisRepo.NewThrottle(rdb, cfg.Allocation.ThrottleLimit, cfg.Allocation.ThrottleWindow))
	}
	return middleware.MemoryThrottle(cfg.Allocation.ThrottleLimit, cfg.Allocation.ThrottleWindow)
}
