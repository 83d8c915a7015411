package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/namanxajmera/stock-alerts/internal/checker/config"
	"github.com/namanxajmera/stock-alerts/internal/checker/service"
	"github.com/namanxajmera/stock-alerts/internal/ratelimit"
	"github.com/namanxajmera/stock-alerts/internal/repository"
	"github.com/namanxajmera/stock-alerts/pkg/logger"
	"github.com/namanxajmera/stock-alerts/pkg/postgres"
	"github.com/namanxajmera/stock-alerts/pkg/redis"
	"github.com/namanxajmera/stock-alerts/pkg/telegram"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs a single checker cycle and exits",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runOnce(ctx)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the checker on a cron schedule",
	Run:   runServe,
}

func runOnce(ctx context.Context) {
	checkerSvc, _, appLogger, cleanup := buildChecker()
	defer cleanup()

	summary, err := checkerSvc.Run(ctx)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			appLogger.Warn("Another checker run is already in progress, exiting")
			return
		}
		appLogger.Fatal("Checker run failed", logger.ErrorField(err))
	}
	if summary.Skipped {
		appLogger.Info("Checker run skipped",
			logger.StringField("weekday", summary.Weekday),
			logger.StringField("reason", summary.SkipReason))
	}
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkerSvc, cfg, appLogger, cleanup := buildChecker()
	defer cleanup()

	cronSpec := cfg.Checker.CronSpec
	if cronSpec == "" {
		// 22:30 UTC, after US market close
		cronSpec = "30 22 * * *"
	}

	c := cron.New()
	_, err := c.AddFunc(cronSpec, func() {
		summary, err := checkerSvc.Run(ctx)
		if err != nil {
			if errors.Is(err, service.ErrRunInProgress) {
				appLogger.Warn("Skipping scheduled run, previous run still in progress")
				return
			}
			appLogger.Error("Scheduled checker run failed", logger.ErrorField(err))
			return
		}
		if summary.Skipped {
			appLogger.Info("Scheduled run skipped",
				logger.StringField("weekday", summary.Weekday),
				logger.StringField("reason", summary.SkipReason))
		}
	})
	if err != nil {
		appLogger.Fatal("Invalid cron spec", logger.ErrorField(err), logger.StringField("spec", cronSpec))
	}

	appLogger.Info("Checker scheduler started", logger.StringField("cron", cronSpec))
	c.Start()

	<-ctx.Done()
	appLogger.Info("Shutting down checker scheduler...")
	<-c.Stop().Done()
	appLogger.Info("Checker exiting")
}

func buildChecker() (*service.CheckerService, *config.Config, *logger.Logger, func()) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger.Info("Starting Checker Service", logger.Field("name", cfg.App.Name))

	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}

	cleanup := func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = redisClient.Close()
		_ = appLogger.Sync()
	}

	watchlistRepo := repository.NewWatchlistRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	cacheRepo := repository.NewStockCacheRepository(db.DB)
	historyRepo := repository.NewAlertHistoryRepository(db.DB)
	apiRequestRepo := repository.NewAPIRequestRepository(db.DB)

	limiter := ratelimit.NewLimiter(apiRequestRepo, appLogger, cfg.Tiingo.SafeHourlyLimit, cfg.Tiingo.SafeDailyLimit)
	tiingoRepo, err := repository.NewTiingoRepository(&cfg.Tiingo, appLogger, limiter)
	if err != nil {
		appLogger.Fatal("Failed to initialize Tiingo client", logger.ErrorField(err))
	}

	tgClient, err := telegram.NewClient(cfg.Telegram.BotToken)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram client", logger.ErrorField(err))
	}
	notifier := service.NewNotifierService(tgClient, appLogger)

	opts := service.Options{
		CacheMaxAge: time.Duration(cfg.Cache.StockMaxAgeHours) * time.Hour,
	}
	if d, err := time.ParseDuration(cfg.Checker.SymbolDelay); err == nil {
		opts.SymbolDelay = d
	}
	if d, err := time.ParseDuration(cfg.Checker.RunLockTTL); err == nil {
		opts.RunLockTTL = d
	}

	checkerSvc := service.NewCheckerService(
		appLogger,
		watchlistRepo,
		userRepo,
		cacheRepo,
		historyRepo,
		tiingoRepo,
		notifier,
		redisClient.Client,
		opts,
	)

	return checkerSvc, cfg, appLogger, cleanup
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{Use: "checker"}

	runCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-checker.yaml", "Path to the configuration file")
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-checker.yaml", "Path to the configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing checker CLI: %s\n", err)
		os.Exit(1)
	}
}
