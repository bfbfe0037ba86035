package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"study-quest/config"
	"study-quest/handlers"
	"study-quest/logger"
	"study-quest/middleware"
	"study-quest/models"
	"study-quest/services"
	"study-quest/store"
	"study-quest/utils"
	"study-quest/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("❌ invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	defer logger.Sync()
	lg := logger.L()

	loc, _ := cfg.Location() // validated by config.Load

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenPostgres(cfg.DatabaseURL, cfg.StoreTimeout)
	if err != nil {
		lg.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		lg.Fatalf("failed to migrate database: %v", err)
	}
	if err := db.SeedBadgeDefinitions(ctx, models.DefaultBadgeCatalog); err != nil {
		lg.Fatalf("failed to seed badge catalog: %v", err)
	}

	clock := clockwork.NewRealClock()
	ledger := services.NewProgressionService(db, clock)
	streaks := services.NewStreakService(db, clock, loc)
	badges := services.NewBadgeService(db, clock, loc)
	game := services.NewGamificationService(ledger, streaks, badges)
	board := services.NewLeaderboardService(db)

	var uploader services.ObjectUploader
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Uploader(ctx, cfg.R2)
		if err != nil {
			lg.Fatalf("failed to initialize R2 client: %v", err)
		}
		uploader = r2
	} else {
		lg.Warn("⚠️  R2 not configured, badge icon uploads are disabled")
	}
	icons := services.NewBadgeIconService(db, uploader)

	sched, err := services.StartStreakDecayScheduler(streaks, cfg.StreakDecayInterval, clock)
	if err != nil {
		lg.Fatalf("failed to start streak decay scheduler: %v", err)
	}

	var syncDone <-chan struct{}
	if cfg.Sync.URL != "" {
		syncDone = workers.NewProfileSyncWorker(db, cfg.Sync, cfg.ServiceToken).Start(ctx)
	} else {
		lg.Warn("⚠️  SYNC_SERVICE_URL not set, profile sync disabled")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupProgressionRoutes(app, game, board, icons)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Errorf("Server error: %v", err)
			stop()
		}
	}()

	lg.Infof("✅ Server running on http://localhost:%s", cfg.Port)
	lg.Infof("✅ Streak decay every %s, default timezone %s", cfg.StreakDecayInterval, loc)
	lg.Infof("✅ CORS configured for origins: %v", cfg.AllowedOrigins)

	<-ctx.Done()
	lg.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		lg.Errorf("server shutdown: %v", err)
	}
	if err := sched.Shutdown(); err != nil {
		lg.Errorf("scheduler shutdown: %v", err)
	}
	if syncDone != nil {
		<-syncDone
	}
}
