package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically releases RESERVED reservations whose expiry has
// passed, returning their held stock to the unreserved pool. Each release
// goes through the normal release path, so a reservation confirmed or
// released between the scan and the sweep is left alone.
type Sweeper struct {
	svc       *ReservationService
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewSweeper(svc *ReservationService, logger *zap.Logger, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		svc:       svc,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	w.logger.Info("expiration sweeper started",
		zap.Duration("interval", w.interval),
		zap.Int("batchSize", w.batchSize))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	orderIDs, err := w.svc.store.FindExpiredOrderIDs(ctx, w.now(), w.batchSize)
	if err != nil {
		w.logger.Error("expired reservation scan failed", zap.Error(err))
		return
	}
	for _, orderID := range orderIDs {
		if err := w.svc.Release(ctx, orderID); err != nil {
			w.logger.Warn("expired reservation release failed",
				zap.String("orderId", orderID),
				zap.Error(err))
			continue
		}
		w.logger.Info("expired reservation released", zap.String("orderId", orderID))
	}
}
