package engine_test

import (
	"errors"
	"testing"

	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/engine/auth"
	"caseline/internal/repo"
)

func TestStaffCapacityMath(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 20)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage", Limit: 5, Count: 3})

	report, err := env.Engine.CapacityCheck(env.Ctx, engine.CapacityQuery{StaffID: "s1"})
	if err != nil {
		t.Fatalf("capacity check: %v", err)
	}
	if report.Type != "staff" || report.StaffID != "s1" {
		t.Fatalf("unexpected target: %+v", report)
	}
	if report.CurrentCount != 3 || report.WIPLimit != 5 {
		t.Fatalf("counts: %+v", report)
	}
	if report.AvailableCapacity != 2 {
		t.Fatalf("available_capacity = %d, want 2", report.AvailableCapacity)
	}
	if report.UtilizationPct != 60.0 {
		t.Fatalf("utilization_pct = %v, want 60.0", report.UtilizationPct)
	}
	if report.Status != domain.CapacityOk {
		t.Fatalf("status = %s, want ok", report.Status)
	}
}

func TestCapacityStatusThresholds(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 100)

	cases := []struct {
		name  string
		count int
		limit int
		want  string
	}{
		{"below warning", 7, 10, domain.CapacityOk},
		{"74.9 percent is ok", 749, 1000, domain.CapacityOk},
		{"exactly 75 is warning", 3, 4, domain.CapacityWarning},
		{"between thresholds", 8, 10, domain.CapacityWarning},
		{"exactly 90 is critical", 9, 10, domain.CapacityCritical},
		{"full load is critical", 10, 10, domain.CapacityCritical},
	}
	for i, tc := range cases {
		id := "s" + string(rune('a'+i))
		env.seedStaff(t, staffSeed{ID: id, UnitID: "triage", Limit: tc.limit, Count: tc.count})
		report, err := env.Engine.CapacityCheck(env.Ctx, engine.CapacityQuery{StaffID: id})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if report.Status != tc.want {
			t.Errorf("%s: status = %s, want %s (utilization %v)", tc.name, report.Status, tc.want, report.UtilizationPct)
		}
	}
}

func TestUnitCapacityExcludesUnavailableStaff(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "fraud", 10)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "fraud", Count: 2})
	env.seedStaff(t, staffSeed{ID: "s2", UnitID: "fraud", Count: 3})
	env.seedStaff(t, staffSeed{ID: "s3", UnitID: "fraud", Count: 4, Availability: domain.AvailabilityOnLeave})

	report, err := env.Engine.CapacityCheck(env.Ctx, engine.CapacityQuery{UnitID: "fraud"})
	if err != nil {
		t.Fatalf("capacity check: %v", err)
	}
	if report.Type != "unit" || report.UnitID != "fraud" {
		t.Fatalf("unexpected target: %+v", report)
	}
	if report.TotalStaff != 2 {
		t.Fatalf("total_staff = %d, want 2 (on-leave member excluded)", report.TotalStaff)
	}
	if report.CurrentCount != 5 {
		t.Fatalf("current_count = %d, want 5", report.CurrentCount)
	}
	if report.UtilizationPct != 50.0 {
		t.Fatalf("utilization_pct = %v, want 50.0", report.UtilizationPct)
	}
}

func TestCapacityCheckTargetValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 10)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage"})

	var ve *engine.ValidationError
	_, err := env.Engine.CapacityCheck(env.Ctx, engine.CapacityQuery{})
	if !errors.As(err, &ve) {
		t.Fatalf("neither target: got %v, want validation error", err)
	}
	_, err = env.Engine.CapacityCheck(env.Ctx, engine.CapacityQuery{StaffID: "s1", UnitID: "triage"})
	if !errors.As(err, &ve) {
		t.Fatalf("both targets: got %v, want validation error", err)
	}
	_, err = env.Engine.CapacityCheck(env.Ctx, engine.CapacityQuery{StaffID: "ghost"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing staff: got %v, want not found", err)
	}
}

func TestCapacityCheckScope(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnit(t, "triage", 10)
	env.seedUnit(t, "fraud", 10)
	env.seedStaff(t, staffSeed{ID: "s1", UnitID: "triage"})
	env.seedStaff(t, staffSeed{ID: "s2", UnitID: "fraud"})

	self := auth.Scope{Role: domain.RoleStaff, StaffID: "s1", UnitID: "triage"}
	if _, err := env.Engine.CapacityCheckFor(env.Ctx, self, engine.CapacityQuery{StaffID: "s1"}); err != nil {
		t.Fatalf("self lookup: %v", err)
	}
	var fe auth.ForbiddenError
	if _, err := env.Engine.CapacityCheckFor(env.Ctx, self, engine.CapacityQuery{StaffID: "s2"}); !errors.As(err, &fe) {
		t.Fatalf("cross-staff lookup: got %v, want forbidden", err)
	}
	if _, err := env.Engine.CapacityCheckFor(env.Ctx, self, engine.CapacityQuery{UnitID: "triage"}); !errors.As(err, &fe) {
		t.Fatalf("staff querying a unit: got %v, want forbidden", err)
	}

	sup := auth.Scope{Role: domain.RoleSupervisor, StaffID: "s1", UnitID: "triage"}
	if _, err := env.Engine.CapacityCheckFor(env.Ctx, sup, engine.CapacityQuery{UnitID: "triage"}); err != nil {
		t.Fatalf("supervisor own unit: %v", err)
	}
	if _, err := env.Engine.CapacityCheckFor(env.Ctx, sup, engine.CapacityQuery{UnitID: "fraud"}); !errors.As(err, &fe) {
		t.Fatalf("supervisor other unit: got %v, want forbidden", err)
	}

	admin := auth.Scope{Role: domain.RoleAdmin}
	if _, err := env.Engine.CapacityCheckFor(env.Ctx, admin, engine.CapacityQuery{UnitID: "fraud"}); err != nil {
		t.Fatalf("admin: %v", err)
	}
}
