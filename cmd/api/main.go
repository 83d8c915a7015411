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

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/namanxajmera/stock-alerts/internal/api/config"
	delivery "github.com/namanxajmera/stock-alerts/internal/api/delivery/http"
	"github.com/namanxajmera/stock-alerts/internal/api/service"
	"github.com/namanxajmera/stock-alerts/internal/ratelimit"
	"github.com/namanxajmera/stock-alerts/internal/repository"
	"github.com/namanxajmera/stock-alerts/pkg/logger"
	"github.com/namanxajmera/stock-alerts/pkg/postgres"
	"github.com/namanxajmera/stock-alerts/pkg/redis"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the stock data API service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting API Service", logger.Field("name", cfg.App.Name))

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
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
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
	defer redisClient.Close()

	cacheRepo := repository.NewStockCacheRepository(db.DB)
	statsRepo := repository.NewTradingStatsRepository(db.DB)
	apiRequestRepo := repository.NewAPIRequestRepository(db.DB)

	limiter := ratelimit.NewLimiter(apiRequestRepo, appLogger, cfg.Tiingo.SafeHourlyLimit, cfg.Tiingo.SafeDailyLimit)
	tiingoRepo, err := repository.NewTiingoRepository(&cfg.Tiingo, appLogger, limiter)
	if err != nil {
		appLogger.Fatal("Failed to initialize Tiingo client", logger.ErrorField(err))
	}

	stockSvc := service.NewStockService(
		appLogger,
		cacheRepo,
		statsRepo,
		tiingoRepo,
		time.Duration(cfg.Cache.StockMaxAgeHours)*time.Hour,
		time.Duration(cfg.Cache.StatsMaxAgeHours)*time.Hour,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	apiV1 := e.Group("/api/v1")

	stockHandler := delivery.NewStockHandler(stockSvc, appLogger)
	stocksGroup := apiV1.Group("/stocks")
	stockHandler.RegisterRoutes(stocksGroup)

	statusHandler := delivery.NewStatusHandler(limiter, redisClient.Client, appLogger)
	statusHandler.RegisterRoutes(apiV1)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{Use: "api"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-api.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing api CLI: %s\n", err)
		os.Exit(1)
	}
}
