package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/metrics"
)

// RecoverySchedulerConfig configuration for the periodic recovery sweep
type RecoverySchedulerConfig struct {
	// SweepInterval is how often the timeout and stuck-order sweeps run
	SweepInterval time.Duration `json:"sweepInterval"`
}

// DefaultRecoverySchedulerConfig returns default configuration
func DefaultRecoverySchedulerConfig() RecoverySchedulerConfig {
	return RecoverySchedulerConfig{
		SweepInterval: 1 * time.Minute,
	}
}

// RecoveryScheduler periodically sweeps for expired response windows and
// stuck orders. Cycles never overlap: a tick that fires while the previous
// cycle still runs is skipped.
type RecoveryScheduler struct {
	tracker    *TimeoutTracker
	reassigner *ReassignmentController
	detector   *StuckOrderDetector
	executor   *RecoveryExecutor
	logger     *logging.Logger
	metrics    *metrics.Metrics
	config     RecoverySchedulerConfig

	mu       sync.Mutex
	running  bool
	inCycle  bool
	stopChan chan struct{}
}

// NewRecoveryScheduler creates a new RecoveryScheduler
func NewRecoveryScheduler(
	tracker *TimeoutTracker,
	reassigner *ReassignmentController,
	detector *StuckOrderDetector,
	executor *RecoveryExecutor,
	logger *logging.Logger,
	m *metrics.Metrics,
	config RecoverySchedulerConfig,
) *RecoveryScheduler {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultRecoverySchedulerConfig().SweepInterval
	}
	return &RecoveryScheduler{
		tracker:    tracker,
		reassigner: reassigner,
		detector:   detector,
		executor:   executor,
		logger:     logger,
		metrics:    m,
		config:     config,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (s *RecoveryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("recovery scheduler is already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("Recovery scheduler started", "sweepInterval", s.config.SweepInterval.String())
	go s.run(ctx)
	return nil
}

// Stop stops the periodic sweep
func (s *RecoveryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
		s.logger.Info("Recovery scheduler stopped")
	}
}

// IsRunning returns whether the scheduler is running
func (s *RecoveryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RecoveryScheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.TriggerRecoveryCycle(ctx); err != nil {
				s.logger.WithError(err).Error("Recovery cycle failed")
			}
		}
	}
}

// TriggerRecoveryCycle runs one sweep immediately. It is also the manual
// trigger behind the admin API. A cycle already in flight makes this a no-op.
func (s *RecoveryScheduler) TriggerRecoveryCycle(ctx context.Context) (*RecoveryCycleDTO, error) {
	s.mu.Lock()
	if s.inCycle {
		s.mu.Unlock()
		return nil, fmt.Errorf("recovery cycle already in progress")
	}
	s.inCycle = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inCycle = false
		s.mu.Unlock()
	}()

	tickID := generateTickID()
	start := time.Now()
	s.logger.RecoveryTickStart(ctx, tickID)

	result := &RecoveryCycleDTO{
		TickID:    tickID,
		StartedAt: start,
	}

	cycleOK := true

	// Phase one: expired response windows
	expired, err := s.tracker.ClaimExpired(ctx, start)
	if err != nil {
		s.logger.WithError(err).Error("Timeout sweep failed", "tickId", tickID)
		cycleOK = false
	}

	healed := make(map[string]bool, len(expired))
	for _, assignment := range expired {
		outcome, err := s.reassigner.HandleTimeout(ctx, assignment)
		if err != nil {
			s.logger.WithError(err).Error("Failed to handle timeout",
				"tickId", tickID, "assignmentId", assignment.AssignmentID)
			cycleOK = false
			continue
		}

		result.Processed++
		healed[assignment.OrderID] = true
		switch outcome {
		case OutcomeReassigned:
			result.Reassigned++
		case OutcomeEscalated:
			result.Escalated++
		}
	}

	// Phase two: stuck orders, skipping anything phase one already touched
	stuck, err := s.detector.Detect(ctx, start)
	if err != nil {
		s.logger.WithError(err).Error("Stuck order sweep failed", "tickId", tickID)
		cycleOK = false
	}

	for _, candidate := range stuck {
		if healed[candidate.OrderID] {
			continue
		}

		action, err := s.executor.ExecuteRecovery(ctx, candidate, tickID)
		if err != nil {
			s.logger.WithError(err).Error("Failed to execute recovery",
				"tickId", tickID, "orderId", candidate.OrderID)
			cycleOK = false
			continue
		}
		if action == nil {
			// Claimed by a concurrent worker
			continue
		}

		result.Processed++
		healed[candidate.OrderID] = true
		switch action.Action {
		case domain.ActionReassignSupplier:
			if action.Succeeded() {
				result.Reassigned++
			}
		case domain.ActionEscalate:
			if action.Succeeded() {
				result.Escalated++
			}
		}
	}

	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()

	s.metrics.RecordRecoveryCycle(cycleOK, result.Duration)
	s.logger.RecoveryTickComplete(ctx, tickID, result.Duration, result.Processed, result.Reassigned, result.Escalated)

	return result, nil
}
