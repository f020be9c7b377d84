package engine_test

import (
	"fmt"
	"testing"
	"time"

	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/events"
	"caseline/internal/repo"
)

func (env *testEnv) assignUrgent(t *testing.T, workItemID string) domain.Assignment {
	t.Helper()
	res, err := env.Engine.AutoAssign(env.Ctx, engine.AssignRequest{
		WorkItemID:   workItemID,
		WorkItemType: "ticket",
		Priority:     domain.PriorityUrgent,
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatalf("assign %s: %v", workItemID, err)
	}
	return res.Assignment
}

// Urgent work has a two hour window, so the 75 percent warning line sits
// at 90 minutes and the breach line at 120.
func TestSweepPercentElapsedBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{"just under warning", 89 * time.Minute, domain.SLAOk},
		{"exactly warning", 90 * time.Minute, domain.SLAWarning},
		{"just under breach", 119 * time.Minute, domain.SLAWarning},
		{"exactly breach", 120 * time.Minute, domain.SLAEscalated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedUnit(t, "triage", 50)
			env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage", Limit: 10})
			a := env.assignUrgent(t, "wi-1")

			env.setNow(testStart.Add(tc.elapsed))
			if _, err := env.Engine.Sweep(env.Ctx); err != nil {
				t.Fatalf("sweep: %v", err)
			}
			got, err := env.Engine.Repo.GetAssignment(env.Ctx, a.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.SLAStatus != tc.want {
				t.Fatalf("sla_status = %s, want %s", got.SLAStatus, tc.want)
			}
		})
	}
}

func TestSweepEscalatesExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 50)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage", Limit: 10})
	a := env.assignUrgent(t, "wi-1")

	env.setNow(testStart.Add(3 * time.Hour))
	report, err := env.Engine.Sweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Processed != 1 || report.NewlyBreached != 1 || report.NewlyEscalated != 1 {
		t.Fatalf("report = %+v", report)
	}
	ev, err := env.Engine.Repo.GetEscalationByAssignment(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("escalation: %v", err)
	}
	if ev.AssignmentID != a.ID {
		t.Fatalf("escalation for %s", ev.AssignmentID)
	}

	// Further sweeps leave the escalated assignment alone.
	env.setNow(testStart.Add(9 * time.Hour))
	again, err := env.Engine.Sweep(env.Ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.NewlyBreached != 0 || again.NewlyEscalated != 0 {
		t.Fatalf("second report = %+v", again)
	}
	all, err := env.Engine.Repo.ListEscalations(env.Ctx, 10)
	if err != nil {
		t.Fatalf("list escalations: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d escalation rows, want 1", len(all))
	}
	log, err := env.Engine.Repo.LatestEvents(env.Ctx, repo.EventFilters{Type: events.TypeSLAEscalated})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("got %d escalation events, want 1", len(log))
	}
}

func TestSweepStatusNeverRegresses(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 50)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage", Limit: 10})
	a := env.assignUrgent(t, "wi-1")

	env.setNow(testStart.Add(100 * time.Minute))
	if _, err := env.Engine.Sweep(env.Ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// A clock step backwards must not move the status back to ok.
	env.setNow(testStart.Add(10 * time.Minute))
	if _, err := env.Engine.Sweep(env.Ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	got, err := env.Engine.Repo.GetAssignment(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SLAStatus != domain.SLAWarning {
		t.Fatalf("sla_status = %s, want warning", got.SLAStatus)
	}
}

func TestSweepSkipsTerminalAssignments(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 50)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage", Limit: 10})
	a := env.assignUrgent(t, "wi-1")
	if _, err := env.Engine.CompleteAssignment(env.Ctx, a.ID, "tester"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	env.setNow(testStart.Add(3 * time.Hour))
	report, err := env.Engine.Sweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Processed != 0 || report.NewlyEscalated != 0 {
		t.Fatalf("report = %+v", report)
	}
	if _, err := env.Engine.Repo.GetEscalationByAssignment(env.Ctx, a.ID); err != repo.ErrNotFound {
		t.Fatalf("escalation lookup: %v", err)
	}
}

func TestSweepTenThousandAssignments(t *testing.T) {
	if testing.Short() {
		t.Skip("bulk sweep")
	}
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 50)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage", Limit: 10})

	tx, err := env.Engine.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO assignments
		(id, work_item_id, work_item_type, assignee_id, priority, status, assigned_at, sla_deadline, sla_status, score)
		VALUES (?, ?, 'ticket', 's1', 'urgent', 'assigned', ?, ?, 'ok', 80)`)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	assignedAt := testStart.Format(time.RFC3339)
	nearDeadline := testStart.Add(time.Hour).Format(time.RFC3339)
	farDeadline := testStart.Add(24 * time.Hour).Format(time.RFC3339)
	const total = 10000
	for i := 0; i < total; i++ {
		deadline := farDeadline
		if i%10 == 0 {
			deadline = nearDeadline
		}
		id := fmt.Sprintf("a-%05d", i)
		if _, err := stmt.Exec(id, "wi-"+id, assignedAt, deadline); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	env.setNow(testStart.Add(90 * time.Minute))
	begun := time.Now()
	report, err := env.Engine.Sweep(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if elapsed := time.Since(begun); elapsed > 5*time.Second {
		t.Fatalf("sweep took %s", elapsed)
	}
	if report.Processed != total {
		t.Fatalf("processed = %d", report.Processed)
	}
	if report.NewlyEscalated != total/10 {
		t.Fatalf("escalated = %d, want %d", report.NewlyEscalated, total/10)
	}
}
