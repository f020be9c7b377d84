package engine_test

import (
	"context"
	"testing"
	"time"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/migrate"
)

var testStart = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return testStart }
	return &testEnv{Engine: eng, Ctx: context.Background()}
}

// setNow freezes the engine clock at a new instant.
func (env *testEnv) setNow(ts time.Time) {
	env.Engine.Now = func() time.Time { return ts }
}

func (env *testEnv) seedUnit(t *testing.T, id string, limit int) {
	t.Helper()
	err := env.Engine.UpsertUnit(env.Ctx, domain.OrganizationalUnit{ID: id, UnitWIPLimit: limit}, "tester")
	if err != nil {
		t.Fatalf("seed unit %s: %v", id, err)
	}
}

func (env *testEnv) seedSkill(t *testing.T, id string) {
	t.Helper()
	if err := env.Engine.UpsertSkill(env.Ctx, domain.Skill{ID: id}, "tester"); err != nil {
		t.Fatalf("seed skill %s: %v", id, err)
	}
}

type staffSeed struct {
	ID           string
	UnitID       string
	Skills       []string
	Limit        int
	Count        int
	Availability string
}

func (env *testEnv) seedStaff(t *testing.T, s staffSeed) {
	t.Helper()
	if s.Limit == 0 {
		s.Limit = 5
	}
	if s.Availability == "" {
		s.Availability = domain.AvailabilityAvailable
	}
	err := env.Engine.UpsertStaff(env.Ctx, domain.StaffProfile{
		ID:                     s.ID,
		UserID:                 "user-" + s.ID,
		UnitID:                 s.UnitID,
		Skills:                 s.Skills,
		IndividualWIPLimit:     s.Limit,
		CurrentAssignmentCount: s.Count,
		AvailabilityStatus:     s.Availability,
	}, "tester")
	if err != nil {
		t.Fatalf("seed staff %s: %v", s.ID, err)
	}
}
