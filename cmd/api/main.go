package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
	"soul-carbon/carbon-tracker-backend/internal/config"
	"soul-carbon/carbon-tracker-backend/internal/database"
	"soul-carbon/carbon-tracker-backend/internal/emissions"
	"soul-carbon/carbon-tracker-backend/internal/leaderboard"
	"soul-carbon/carbon-tracker-backend/internal/middleware"
	"soul-carbon/carbon-tracker-backend/internal/offsets"
	"soul-carbon/carbon-tracker-backend/internal/projects"
	"soul-carbon/carbon-tracker-backend/internal/reconciliation"
	"soul-carbon/carbon-tracker-backend/internal/transactions"
	"soul-carbon/carbon-tracker-backend/pkg/certificate"
	"soul-carbon/carbon-tracker-backend/pkg/hedera"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.Database.GetDatabaseURL(), cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, leaderboards fall back to the database", zap.Error(err))
		}
		cancel()
	}
	defer cache.Close()

	ledger, err := hedera.NewClient(&cfg.Hedera, logger)
	if err != nil {
		logger.Fatal("failed to init hedera client", zap.Error(err))
	}
	defer ledger.Close()

	// Repositories and services.
	reconSvc := reconciliation.NewService(reconciliation.NewRepository(db), logger)
	authSvc := auth.NewService(auth.NewRepository(db), cfg.Security.JWTSecret, cfg.Security.JWTExpiry, logger)
	projectsSvc := projects.NewService(projects.NewRepository(db))
	emissionsSvc := emissions.NewService(emissions.NewRepository(db), ledger, reconSvc, cfg.Hedera.TopicID, logger)
	offsetsSvc := offsets.NewService(offsets.NewRepository(db), projectsSvc, ledger, reconSvc,
		certificate.NewGenerator(), cfg.Hedera.TokenID, logger)
	txSvc := transactions.NewService(transactions.NewRepository(db))
	boardSvc := leaderboard.NewService(leaderboard.NewRepository(db), cache, logger)

	sweeper, err := reconSvc.StartSweeper("@every 15m")
	if err != nil {
		logger.Fatal("failed to start inconsistency sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// HTTP surface.
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(cfg.RateLimit.GeneralPerMinute, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRequired := middleware.Authenticate(authSvc, logger)
	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimit.AuthPer15Min, 15*time.Minute))
	auth.NewHandler(authSvc, logger).RegisterRoutes(authGroup, authRequired)

	emissionsGroup := api.Group("/emissions", authRequired)
	emissions.NewHandler(emissionsSvc, logger).RegisterRoutes(emissionsGroup)

	offsetsGroup := api.Group("/offsets", authRequired)
	offsets.NewHandler(offsetsSvc, projectsSvc, logger).RegisterRoutes(offsetsGroup)

	txGroup := api.Group("/transactions", authRequired)
	transactions.NewHandler(txSvc, logger).RegisterRoutes(txGroup)

	boardGroup := api.Group("/leaderboards", authRequired)
	leaderboard.NewHandler(boardSvc, logger).RegisterRoutes(boardGroup)

	server := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevel()
	}
	return cfg.Build()
}
