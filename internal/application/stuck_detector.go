package application

import (
	"context"
	"fmt"
	"time"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
)

// StuckOrderDetector scans for orders that have sat in one status beyond its
// threshold. Orders already under healing are left alone.
type StuckOrderDetector struct {
	orderRepo  domain.OrderRepository
	logger     *logging.Logger
	metrics    *metrics.Metrics
	batchSize  int
	thresholds domain.StuckThresholds
}

// NewStuckOrderDetector creates a new StuckOrderDetector
func NewStuckOrderDetector(
	orderRepo domain.OrderRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
	batchSize int,
	thresholds domain.StuckThresholds,
) *StuckOrderDetector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if thresholds == (domain.StuckThresholds{}) {
		thresholds = domain.DefaultStuckThresholds()
	}
	return &StuckOrderDetector{
		orderRepo:  orderRepo,
		logger:     logger,
		metrics:    m,
		batchSize:  batchSize,
		thresholds: thresholds,
	}
}

// watchedStatuses lists every status the detector sweeps, in lifecycle order.
// TIMED_OUT covers rejected or aborted reassignments; ASSIGNED covers orders
// whose claimed window never produced a follow-up.
var watchedStatuses = []domain.OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusAssigned,
	domain.OrderStatusTimedOut,
	domain.OrderStatusAccepted,
	domain.OrderStatusInProgress,
}

// Detect returns the orders currently stuck, oldest issues first per status
func (d *StuckOrderDetector) Detect(ctx context.Context, now time.Time) ([]domain.StuckOrder, error) {
	found := make([]domain.StuckOrder, 0)

	for _, status := range watchedStatuses {
		threshold, _, ok := d.thresholds.For(status)
		if !ok {
			continue
		}

		cutoff := now.Add(-threshold)
		orders, err := d.orderRepo.FindStuckCandidates(ctx, status, cutoff, d.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s orders: %w", status, err)
		}

		for _, order := range orders {
			stuck, ok := domain.ClassifyStuckOrder(order, now, d.thresholds)
			if !ok {
				continue
			}

			d.metrics.RecordStuckOrder(string(stuck.IssueType))
			found = append(found, stuck)
		}
	}

	if len(found) > 0 {
		d.logger.Warn("Detected stuck orders", "count", len(found))
	}

	return found, nil
}
