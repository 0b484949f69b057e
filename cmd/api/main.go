package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auctionhouse/internal/config"
	"auctionhouse/internal/lock"
	"auctionhouse/internal/server"
	"auctionhouse/internal/service"
	"auctionhouse/internal/store"
	"auctionhouse/utils"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type application struct {
	config         *config.Config
	db             *sql.DB
	redisClient    *redis.Client
	auctionService *service.AuctionService
	server         *http.Server
	shutdownChan   chan struct{}
	schedulerDone  chan struct{}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.Fatal("Failed to load configuration", map[string]any{"error": err.Error()})
	}

	db, err := store.ConnectDB(cfg.DBDriver, cfg.DBDataSourceName)
	if err != nil {
		utils.Fatal("Failed to connect to database", map[string]any{"error": err.Error()})
	}
	defer func() {
		if err := db.Close(); err != nil {
			utils.Error("Error closing database", map[string]any{"error": err.Error()})
		}
	}()

	if err := store.RunMigrations(db, cfg.MigrationsDir); err != nil {
		utils.Fatal("Failed to run migrations", map[string]any{"error": err.Error()})
	}

	redisClient, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		utils.Fatal("Failed to connect to Redis", map[string]any{"error": err.Error()})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			utils.Error("Error closing Redis client", map[string]any{"error": err.Error()})
		}
	}()

	dbStore := store.NewDBStore(db)
	redisStore := store.NewRedisStore(redisClient, cfg.BalanceCacheTTL)
	locks := lock.NewRedisCoordinator(redisClient)

	pointService := service.NewPointService(dbStore, dbStore, redisStore, locks, cfg.LockWaitTimeout, cfg.LockLeaseTimeout)
	bidService := service.NewBidService(dbStore, pointService)
	auctionService := service.NewAuctionService(dbStore, dbStore, pointService)

	app := &application{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		auctionService: auctionService,
		shutdownChan:   make(chan struct{}),
		schedulerDone:  make(chan struct{}),
	}

	go app.runAuctionScheduler()

	router := server.SetupRouter(auctionService, bidService, pointService)

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	app.serve()
}

func (app *application) serve() {
	utils.Info("Starting server", map[string]any{"addr": app.server.Addr})

	errChan := make(chan error)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		utils.Fatal("Server error", map[string]any{"error": err.Error()})
	case sig := <-quit:
		utils.Info("Received signal, shutting down server", map[string]any{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(app.shutdownChan)
	select {
	case <-app.schedulerDone:
		utils.Info("Auction scheduler stopped", nil)
	case <-time.After(10 * time.Second):
		utils.Warn("Auction scheduler did not stop in time", nil)
	}

	if err := app.server.Shutdown(ctx); err != nil {
		utils.Error("Graceful server shutdown failed", map[string]any{"error": err.Error()})
	} else {
		utils.Info("Server gracefully stopped", nil)
	}
}

// runAuctionScheduler periodically activates due auctions and delivers
// close signals for expired ones. Multiple instances may run the same
// sweep; duplicate close signals are absorbed by the close contract.
func (app *application) runAuctionScheduler() {
	defer close(app.schedulerDone)

	app.runSchedulerPass()

	ticker := time.NewTicker(app.config.SchedulerInterval)
	defer ticker.Stop()

	utils.Info("Auction scheduler started", map[string]any{
		"interval": app.config.SchedulerInterval.String(),
	})

	for {
		select {
		case <-ticker.C:
			app.runSchedulerPass()
		case <-app.shutdownChan:
			utils.Info("Scheduler received shutdown signal", nil)
			return
		}
	}
}

func (app *application) runSchedulerPass() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	activated, err := app.auctionService.ActivateDueAuctions(ctx)
	if err != nil {
		utils.Error("Scheduler: failed to activate due auctions", map[string]any{"error": err.Error()})
	} else if activated > 0 {
		utils.Info("Scheduler: activated due auctions", map[string]any{"count": activated})
	}

	if err := app.auctionService.CloseDueAuctions(ctx); err != nil {
		utils.Error("Scheduler: failed to close due auctions", map[string]any{"error": err.Error()})
	}
}
