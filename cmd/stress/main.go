// Command stress races concurrent reservations for a single SKU against a
// live MySQL store and verifies that the committed state never oversells.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/adapter/storage"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/service"
)

const (
	sku           = "stress-test-sku"
	initialStock  = 20
	totalRequests = 50
	quantityEach  = 1
)

func main() {
	ctx := context.Background()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	// Reset the stress SKU to a known state.
	if _, err := db.ExecContext(ctx, `DELETE i FROM stock_reservation_items i
		JOIN stock_reservations r ON r.id = i.reservation_id
		WHERE r.order_id LIKE 'stress-%'`); err != nil {
		log.Fatalf("failed to clear reservation items: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM stock_reservations WHERE order_id LIKE 'stress-%'`); err != nil {
		log.Fatalf("failed to clear reservations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO inventories (sku, available_quantity, reserved_quantity, minimum_stock_level, version, created_at, updated_at)
		VALUES (?, ?, 0, 0, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE available_quantity = ?, reserved_quantity = 0, version = 0`,
		sku, initialStock, initialStock); err != nil {
		log.Fatalf("failed to seed inventory: %v", err)
	}

	logger := zap.NewNop()
	store := storage.NewMySQLStore(db)
	reservations := service.NewReservationService(store, nil, logger,
		service.RetryPolicy{MaxAttempts: 5, Backoff: 20 * time.Millisecond, Multiplier: 2},
		domain.DefaultReservationTTL)

	var (
		reserved     atomic.Int32
		insufficient atomic.Int32
		lockFailed   atomic.Int32
		other        atomic.Int32
		wg           sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			orderID := fmt.Sprintf("stress-%d-%d", start.UnixNano(), n)
			outcome, err := reservations.Reserve(ctx, orderID, map[string]int{sku: quantityEach})
			if err != nil {
				other.Add(1)
				log.Printf("order %s: %v", orderID, err)
				return
			}
			switch outcome.Status {
			case domain.OutcomeReserved:
				reserved.Add(1)
			case domain.OutcomeInsufficientStock:
				insufficient.Add(1)
			case domain.OutcomeLockAcquisitionFailed:
				lockFailed.Add(1)
			default:
				other.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var available, held int
	if err := db.QueryRowContext(ctx, `
		SELECT available_quantity, reserved_quantity FROM inventories WHERE sku = ?`, sku,
	).Scan(&available, &held); err != nil {
		log.Fatalf("failed to read final inventory: %v", err)
	}

	fmt.Printf("requests:          %d in %v\n", totalRequests, elapsed)
	fmt.Printf("reserved:          %d\n", reserved.Load())
	fmt.Printf("insufficient:      %d\n", insufficient.Load())
	fmt.Printf("lock failed:       %d\n", lockFailed.Load())
	fmt.Printf("other:             %d\n", other.Load())
	fmt.Printf("final inventory:   available=%d reserved=%d\n", available, held)

	if held != int(reserved.Load())*quantityEach {
		log.Fatalf("LEDGER MISMATCH: %d units held, %d successful reservations", held, reserved.Load())
	}
	if held > available {
		log.Fatalf("OVERSOLD: reserved %d exceeds available %d", held, available)
	}
	fmt.Println("no oversell detected")
}
