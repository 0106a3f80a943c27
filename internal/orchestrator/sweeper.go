package orchestrator

// RecoverySweeper implements §4.I: a periodic scan that restarts stale
// PENDING/DEPLOYING deployments and fails ones that have been stuck past a
// hard timeout.
//
// Grounded on internal/deploy/lifecycle/lifecycle_manager.go's
// periodic-scan-with-ticker idiom, repurposed from health-check polling to
// crash recovery.
import (
	"context"
	"fmt"
	"time"

	"superagent/internal/model"
)

// SweepCounts is the result tally from one Run.
type SweepCounts struct {
	Retried int
	Failed  int
	Skipped int
	Errors  int
}

// RecoverySweeper periodically scans for orphaned deployments.
type RecoverySweeper struct {
	orch           *Orchestrator
	maxAge         time.Duration
	timeout        time.Duration
}

// NewRecoverySweeper returns a sweeper with the given staleness/timeout
// windows. Defaults per §4.I: maxAgeMinutes=2, timeoutMinutes=60.
func NewRecoverySweeper(orch *Orchestrator, maxAgeMinutes, timeoutMinutes int) *RecoverySweeper {
	if maxAgeMinutes <= 0 {
		maxAgeMinutes = 2
	}
	if timeoutMinutes <= 0 {
		timeoutMinutes = 60
	}
	return &RecoverySweeper{
		orch:    orch,
		maxAge:  time.Duration(maxAgeMinutes) * time.Minute,
		timeout: time.Duration(timeoutMinutes) * time.Minute,
	}
}

// Run executes one sweep pass (§4.I's algorithm).
func (s *RecoverySweeper) Run(ctx context.Context) SweepCounts {
	var counts SweepCounts
	now := time.Now()
	staleCutoff := now.Add(-s.maxAge)

	candidates := make([]*model.Deployment, 0)
	for _, status := range []model.DeploymentStatus{model.StatusPending, model.StatusDeploying} {
		rows, err := s.orch.store.Deployments.GetStaleByStatus(ctx, status, staleCutoff)
		if err != nil {
			counts.Errors++
			continue
		}
		candidates = append(candidates, rows...)
	}

	timeoutCutoff := now.Add(-s.timeout)

	for _, d := range candidates {
		if d.CreatedAt.Before(timeoutCutoff) {
			msg := fmt.Sprintf("Timeout: stuck for > %s", s.timeout)
			if err := s.orch.UpdateStatus(ctx, d.ID, model.StatusFailed, msg, fmt.Sprintf("[ERROR] %s", msg)); err != nil {
				counts.Errors++
				continue
			}
			counts.Failed++
			continue
		}

		s.orch.mu.Lock()
		handle, inFlight := s.orch.activeTasks[d.ID]
		s.orch.mu.Unlock()
		if inFlight {
			select {
			case <-handle.Done():
			default:
				counts.Skipped++
				continue
			}
		}

		// Start() only accepts PENDING/FAILED rows; a crashed DEPLOYING row
		// has no live worker (it isn't in active_tasks, or we'd have skipped
		// it above), so reset it to PENDING before resuming.
		if d.Status == model.StatusDeploying {
			d.Status = model.StatusPending
			if err := s.orch.store.Deployments.Update(ctx, d); err != nil {
				counts.Errors++
				continue
			}
		}

		if err := s.orch.Start(ctx, d.ID); err != nil {
			counts.Errors++
			continue
		}
		counts.Retried++
	}

	return counts
}

// RunPeriodically runs Run once immediately, then every interval until ctx
// is cancelled, matching §4.I's "invoked once at startup and (optionally)
// periodically".
func (s *RecoverySweeper) RunPeriodically(ctx context.Context, interval time.Duration) {
	s.Run(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}
