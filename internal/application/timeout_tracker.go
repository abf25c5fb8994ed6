package application

import (
	"context"
	"fmt"
	"time"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
)

// TimeoutTracker manages supplier response windows. Windows are opened when
// an assignment is created; the tracker's job is finding expired ones and
// closing windows that no longer matter.
type TimeoutTracker struct {
	assignmentRepo domain.AssignmentRepository
	logger         *logging.Logger
	metrics        *metrics.Metrics
	batchSize      int
}

// NewTimeoutTracker creates a new TimeoutTracker
func NewTimeoutTracker(
	assignmentRepo domain.AssignmentRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
	batchSize int,
) *TimeoutTracker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &TimeoutTracker{
		assignmentRepo: assignmentRepo,
		logger:         logger,
		metrics:        m,
		batchSize:      batchSize,
	}
}

// CancelWindow closes an assignment's response window. Cancelling an already
// closed window is a no-op, so the supplier responding and the sweep firing
// concurrently cannot double-process an assignment.
func (t *TimeoutTracker) CancelWindow(ctx context.Context, assignmentID string) (bool, error) {
	cancelled, err := t.assignmentRepo.CancelWindow(ctx, assignmentID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel window: %w", err)
	}
	return cancelled, nil
}

// FindExpired returns assignments whose response window deadline has passed
// and is still active
func (t *TimeoutTracker) FindExpired(ctx context.Context, now time.Time) ([]*domain.SupplierAssignment, error) {
	expired, err := t.assignmentRepo.FindExpired(ctx, now, t.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired windows: %w", err)
	}
	return expired, nil
}

// ClaimExpired finds expired windows and atomically closes each one. Only
// assignments whose window this tracker actually closed are returned, so two
// sweeps running at once never hand the same assignment to the reassignment path.
func (t *TimeoutTracker) ClaimExpired(ctx context.Context, now time.Time) ([]*domain.SupplierAssignment, error) {
	expired, err := t.FindExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	claimed := make([]*domain.SupplierAssignment, 0, len(expired))
	for _, assignment := range expired {
		won, err := t.CancelWindow(ctx, assignment.AssignmentID)
		if err != nil {
			t.logger.WithError(err).Error("Failed to claim expired window",
				"assignmentId", assignment.AssignmentID)
			continue
		}
		if !won {
			// Another sweep or a late supplier response got there first
			continue
		}

		t.metrics.RecordTimeoutDetected()
		claimed = append(claimed, assignment)
	}

	return claimed, nil
}
