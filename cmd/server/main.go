package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sekonomy/internal/adapter/handler"
	"sekonomy/internal/adapter/storage"
	"sekonomy/internal/config"
	"sekonomy/internal/core/service"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	// The drop tiers' rarity cutoffs are registered up front so refresh
	// precomputes their reduced tables.
	cutoffs := make([]int, 0, len(cfg.Drop.Tiers))
	tiers := make(map[string]service.DropTier, len(cfg.Drop.Tiers))
	for name, tier := range cfg.Drop.Tiers {
		cutoffs = append(cutoffs, tier.MaxRarity)
		tiers[name] = service.DropTier{
			ChanceMultiplier: tier.ChanceMultiplier,
			MaxRarity:        tier.MaxRarity,
		}
	}

	sampler := service.NewSampler(mysqlAdapter, cfg.Economy.RarityWeightBase, cutoffs, logger)
	if err := sampler.Refresh(ctx); err != nil {
		logger.Fatal("failed to build reward tables", zap.Error(err))
	}

	// Initialize services
	accounts := service.NewAccountService(mysqlAdapter, redisAdapter, logger)
	exchange := service.NewExchangeService(mysqlAdapter, redisAdapter, cfg.Economy.MarketFeeRate, logger)
	gacha := service.NewGachaService(mysqlAdapter, sampler, cfg.Economy.GachaCost, logger)
	drops := service.NewDropService(mysqlAdapter, redisAdapter, sampler, service.DropParams{
		DamageDivisor: cfg.Drop.DamageDivisor,
		MaxChance:     cfg.Drop.MaxChance,
		CoinRate:      cfg.Economy.DamageCoinRate,
		Tiers:         tiers,
	}, logger)
	craft := service.NewCraftService(mysqlAdapter, mysqlAdapter, logger)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(accounts, exchange, gacha, drops, craft, sampler)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
