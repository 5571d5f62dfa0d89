// Contention driver: seeds one listing and fires concurrent purchases at
// it, verifying that exactly as many succeed as there were escrowed units.
// Needs a provisioned MySQL and Redis (see scripts/schema.sql).
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sekonomy/internal/adapter/storage"
	"sekonomy/internal/core/domain"
	"sekonomy/internal/core/service"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/sekonomy?parseTime=true"
	redisAddr     = "localhost:6379"
	sellerID      = "sim-seller"
	itemID        = "ore_iron"
	listedUnits   = 20
	totalRequests = 50
	feeRate       = 0.10
)

func main() {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	exchange := service.NewExchangeService(mysqlAdapter, redisAdapter, feeRate, logger)

	// Seed: seller holds the stock, every buyer can afford one unit.
	if err := mysqlAdapter.EnsureAccount(ctx, sellerID); err != nil {
		logger.Fatal("seed seller", zap.Error(err))
	}
	if err := mysqlAdapter.AdjustInventory(ctx, sellerID, map[string]float64{itemID: listedUnits}); err != nil {
		logger.Fatal("seed seller inventory", zap.Error(err))
	}
	listingID, err := exchange.CreateListing(ctx, sellerID, itemID, 5, listedUnits)
	if err != nil {
		logger.Fatal("seed listing", zap.Error(err))
	}

	for i := 0; i < totalRequests; i++ {
		buyer := fmt.Sprintf("sim-buyer-%d", i)
		if err := mysqlAdapter.EnsureAccount(ctx, buyer); err != nil {
			logger.Fatal("seed buyer", zap.Error(err))
		}
		if err := mysqlAdapter.CreditBalance(ctx, buyer, 100); err != nil {
			logger.Fatal("seed buyer balance", zap.Error(err))
		}
	}

	var successCount, soldOutCount, otherCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := fmt.Sprintf("sim-buyer-%d", i)
			_, err := exchange.Purchase(ctx, uuid.NewString(), buyer, listingID, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientQuantity), errors.Is(err, domain.ErrNotFound):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				logger.Warn("unexpected purchase failure", zap.String("buyer", buyer), zap.Error(err))
			}
		}(i)
	}
	wg.Wait()

	fmt.Printf("requests=%d success=%d sold_out=%d other=%d\n",
		totalRequests, successCount.Load(), soldOutCount.Load(), otherCount.Load())
	if successCount.Load() != listedUnits {
		fmt.Printf("MISMATCH: expected exactly %d successes\n", listedUnits)
	} else {
		fmt.Println("OK: escrowed units sold exactly once each")
	}
}
