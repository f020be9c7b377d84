package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"caseline/internal/domain"
	"caseline/internal/events"
	"caseline/internal/metrics"
	"caseline/internal/repo"
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Processed      int   `json:"processed"`
	NewlyWarning   int   `json:"newly_warning"`
	NewlyBreached  int   `json:"newly_breached"`
	NewlyEscalated int   `json:"newly_escalated"`
	DurationMS     int64 `json:"duration_ms"`
}

// Sweep re-evaluates the SLA status of every open assignment in one
// transaction, so statuses and escalation events always commit together.
// Status moves forward only; an assignment whose breach is first observed
// here is escalated with exactly one escalation event.
func (e Engine) Sweep(ctx context.Context) (SweepReport, error) {
	started := time.Now()
	now := e.now().UTC()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return SweepReport{}, err
	}
	defer tx.Rollback()

	open, err := e.Repo.ListOpenAssignmentsTx(ctx, tx)
	if err != nil {
		return SweepReport{}, err
	}

	var report SweepReport
	var updates []repo.SLAUpdate
	report.Processed = len(open)
	for _, a := range open {
		computed, err := computedSLAStatus(a, now)
		if err != nil {
			return SweepReport{}, err
		}
		current := domain.SLARank(a.SLAStatus)
		if current >= domain.SLARank(domain.SLAEscalated) {
			continue
		}
		if computed == domain.SLABreached {
			// The first sweep to observe a breach escalates it in the
			// same pass.
			exists, err := e.Repo.HasEscalationTx(ctx, tx, a.ID)
			if err != nil {
				return SweepReport{}, err
			}
			updates = append(updates, repo.SLAUpdate{AssignmentID: a.ID, SLAStatus: domain.SLAEscalated})
			if current < domain.SLARank(domain.SLABreached) {
				report.NewlyBreached++
			}
			if exists {
				continue
			}
			ev := domain.EscalationEvent{
				ID:           uuid.NewString(),
				AssignmentID: a.ID,
				CreatedAt:    now.Format(time.RFC3339),
				Reason:       fmt.Sprintf("sla deadline %s exceeded for %s priority work item %s", a.SLADeadline, a.Priority, a.WorkItemID),
			}
			if err := e.Repo.InsertEscalationTx(ctx, tx, ev); err != nil {
				return SweepReport{}, err
			}
			err = e.Events.Append(ctx, tx, events.TypeSLAEscalated, "assignment", a.ID, "sweeper", events.EventPayload{
				"escalation_id": ev.ID,
				"assignee_id":   a.AssigneeID,
				"priority":      a.Priority,
				"sla_deadline":  a.SLADeadline,
			})
			if err != nil {
				return SweepReport{}, err
			}
			report.NewlyEscalated++
			continue
		}
		if domain.SLARank(computed) > current {
			updates = append(updates, repo.SLAUpdate{AssignmentID: a.ID, SLAStatus: computed})
			if computed == domain.SLAWarning {
				report.NewlyWarning++
			}
		}
	}
	if err := e.Repo.ApplySLAUpdatesTx(ctx, tx, updates); err != nil {
		return SweepReport{}, err
	}
	if err := tx.Commit(); err != nil {
		return SweepReport{}, err
	}
	report.DurationMS = time.Since(started).Milliseconds()

	metrics.SweepDurationSeconds.Observe(time.Since(started).Seconds())
	metrics.SweepProcessed.Observe(float64(report.Processed))
	metrics.SweepTransitionsTotal.WithLabelValues(domain.SLAWarning).Add(float64(report.NewlyWarning))
	metrics.SweepTransitionsTotal.WithLabelValues(domain.SLAEscalated).Add(float64(report.NewlyEscalated))
	metrics.EscalationsTotal.Add(float64(report.NewlyEscalated))
	return report, nil
}

// computedSLAStatus applies the percent-elapsed model to one assignment.
func computedSLAStatus(a domain.Assignment, now time.Time) (string, error) {
	assignedAt, err := time.Parse(time.RFC3339, a.AssignedAt)
	if err != nil {
		return "", fmt.Errorf("assignment %s assigned_at: %w", a.ID, err)
	}
	deadline, err := time.Parse(time.RFC3339, a.SLADeadline)
	if err != nil {
		return "", fmt.Errorf("assignment %s sla_deadline: %w", a.ID, err)
	}
	total := deadline.Sub(assignedAt)
	if total <= 0 {
		return domain.SLABreached, nil
	}
	pct := float64(now.Sub(assignedAt)) / float64(total) * 100
	switch {
	case pct >= 100:
		return domain.SLABreached, nil
	case pct >= 75:
		return domain.SLAWarning, nil
	default:
		return domain.SLAOk, nil
	}
}

// SweepRunner drives recurring sweeps. A tick is skipped while the
// previous pass is still running.
type SweepRunner struct {
	Engine   Engine
	Interval time.Duration
	Logger   *log.Logger

	mu sync.Mutex
}

// Run blocks until the context is cancelled.
func (r *SweepRunner) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = r.Engine.Config.SweepInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single pass unless one is already in flight.
func (r *SweepRunner) RunOnce(ctx context.Context) {
	if !r.mu.TryLock() {
		return
	}
	defer r.mu.Unlock()
	report, err := r.Engine.Sweep(ctx)
	if err != nil {
		metrics.SweepFailuresTotal.Inc()
		if r.Logger != nil {
			r.Logger.Printf("sweep failed, will retry next tick: %v", err)
		}
		return
	}
	if r.Logger != nil && (report.NewlyWarning > 0 || report.NewlyBreached > 0 || report.NewlyEscalated > 0) {
		r.Logger.Printf("sweep: processed=%d warning=%d breached=%d escalated=%d duration_ms=%d",
			report.Processed, report.NewlyWarning, report.NewlyBreached, report.NewlyEscalated, report.DurationMS)
	}
}
