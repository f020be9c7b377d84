package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"caseline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- organizational units ---

func (r Repo) UpsertUnit(ctx context.Context, u domain.OrganizationalUnit) error {
	if u.ID == "" {
		return errors.New("unit id required")
	}
	if u.UnitWIPLimit <= 0 {
		return errors.New("unit_wip_limit must be positive")
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO org_units(id,name,unit_wip_limit,created_at) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, unit_wip_limit=excluded.unit_wip_limit`,
		u.ID, u.Name, u.UnitWIPLimit, u.CreatedAt)
	return err
}

func (r Repo) GetUnit(ctx context.Context, id string) (domain.OrganizationalUnit, error) {
	return getUnit(ctx, r.DB, id)
}

func (r Repo) GetUnitTx(ctx context.Context, tx *sql.Tx, id string) (domain.OrganizationalUnit, error) {
	return getUnit(ctx, tx, id)
}

func getUnit(ctx context.Context, q querier, id string) (domain.OrganizationalUnit, error) {
	var u domain.OrganizationalUnit
	err := q.QueryRowContext(ctx, `SELECT id,name,unit_wip_limit,created_at FROM org_units WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.UnitWIPLimit, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) ListUnits(ctx context.Context) ([]domain.OrganizationalUnit, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,unit_wip_limit,created_at FROM org_units ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OrganizationalUnit
	for rows.Next() {
		var u domain.OrganizationalUnit
		if err := rows.Scan(&u.ID, &u.Name, &u.UnitWIPLimit, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// ListUnitLimitsTx returns unit id -> configured WIP limit.
func (r Repo) ListUnitLimitsTx(ctx context.Context, tx *sql.Tx) (map[string]int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id,unit_wip_limit FROM org_units`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	limits := map[string]int{}
	for rows.Next() {
		var id string
		var limit int
		if err := rows.Scan(&id, &limit); err != nil {
			return nil, err
		}
		limits[id] = limit
	}
	return limits, rows.Err()
}

// --- skills ---

func (r Repo) UpsertSkill(ctx context.Context, s domain.Skill) error {
	if s.ID == "" {
		return errors.New("skill id required")
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO skills(id,category,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET category=excluded.category`, s.ID, s.Category, s.CreatedAt)
	return err
}

func (r Repo) ListSkills(ctx context.Context) ([]domain.Skill, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,category,created_at FROM skills ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Skill
	for rows.Next() {
		var s domain.Skill
		if err := rows.Scan(&s.ID, &s.Category, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// MissingSkills returns the subset of ids with no skills row.
func (r Repo) MissingSkills(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		var one int
		err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM skills WHERE id=?`, id).Scan(&one)
		if err == sql.ErrNoRows {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return missing, nil
}

// --- staff profiles ---

func (r Repo) UpsertStaff(ctx context.Context, s domain.StaffProfile) error {
	if s.ID == "" || s.UserID == "" || s.UnitID == "" {
		return errors.New("staff id, user_id and unit_id required")
	}
	if s.IndividualWIPLimit <= 0 {
		return errors.New("individual_wip_limit must be positive")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO staff_profiles(id,user_id,unit_id,role,individual_wip_limit,current_assignment_count,availability_status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id, unit_id=excluded.unit_id, role=excluded.role,
individual_wip_limit=excluded.individual_wip_limit, availability_status=excluded.availability_status, updated_at=excluded.updated_at`,
		s.ID, s.UserID, s.UnitID, s.Role, s.IndividualWIPLimit, s.CurrentAssignmentCount, s.AvailabilityStatus, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM staff_skills WHERE staff_id=?`, s.ID); err != nil {
		return err
	}
	for _, skillID := range s.Skills {
		if _, err := tx.ExecContext(ctx, `INSERT INTO staff_skills(staff_id,skill_id) VALUES (?,?)`, s.ID, skillID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const staffColumns = `id,user_id,unit_id,role,individual_wip_limit,current_assignment_count,availability_status,created_at,updated_at`

func scanStaff(row interface{ Scan(...any) error }) (domain.StaffProfile, error) {
	var s domain.StaffProfile
	err := row.Scan(&s.ID, &s.UserID, &s.UnitID, &s.Role, &s.IndividualWIPLimit,
		&s.CurrentAssignmentCount, &s.AvailabilityStatus, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) GetStaff(ctx context.Context, id string) (domain.StaffProfile, error) {
	return getStaff(ctx, r.DB, id)
}

func (r Repo) GetStaffTx(ctx context.Context, tx *sql.Tx, id string) (domain.StaffProfile, error) {
	return getStaff(ctx, tx, id)
}

func getStaff(ctx context.Context, q querier, id string) (domain.StaffProfile, error) {
	s, err := scanStaff(q.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_profiles WHERE id=?`, id))
	if err != nil {
		return s, err
	}
	s.Skills, err = staffSkills(ctx, q, id)
	return s, err
}

func (r Repo) GetStaffByUserID(ctx context.Context, userID string) (domain.StaffProfile, error) {
	s, err := scanStaff(r.DB.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_profiles WHERE user_id=?`, userID))
	if err != nil {
		return s, err
	}
	s.Skills, err = staffSkills(ctx, r.DB, s.ID)
	return s, err
}

func staffSkills(ctx context.Context, q querier, staffID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT skill_id FROM staff_skills WHERE staff_id=? ORDER BY skill_id`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var skills []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		skills = append(skills, id)
	}
	return skills, rows.Err()
}

// ListStaff returns profiles with their skill sets, optionally scoped to a unit.
func (r Repo) ListStaff(ctx context.Context, unitID string) ([]domain.StaffProfile, error) {
	return listStaff(ctx, r.DB, unitID)
}

func (r Repo) ListStaffTx(ctx context.Context, tx *sql.Tx, unitID string) ([]domain.StaffProfile, error) {
	return listStaff(ctx, tx, unitID)
}

func listStaff(ctx context.Context, q querier, unitID string) ([]domain.StaffProfile, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_profiles`
	var args []any
	if unitID != "" {
		query += ` WHERE unit_id=?`
		args = append(args, unitID)
	}
	query += ` ORDER BY id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StaffProfile
	byID := map[string]int{}
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		byID[s.ID] = len(res)
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return res, nil
	}
	skillRows, err := q.QueryContext(ctx, `SELECT staff_id,skill_id FROM staff_skills ORDER BY skill_id`)
	if err != nil {
		return nil, err
	}
	defer skillRows.Close()
	for skillRows.Next() {
		var staffID, skillID string
		if err := skillRows.Scan(&staffID, &skillID); err != nil {
			return nil, err
		}
		if idx, ok := byID[staffID]; ok {
			res[idx].Skills = append(res[idx].Skills, skillID)
		}
	}
	return res, skillRows.Err()
}

func (r Repo) SetStaffAvailability(ctx context.Context, id, status, updatedAt string) error {
	switch status {
	case domain.AvailabilityAvailable, domain.AvailabilityUnavailable, domain.AvailabilityOnLeave:
	default:
		return fmt.Errorf("invalid availability_status %q", status)
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE staff_profiles SET availability_status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TryIncrementStaffLoadTx bumps a staff member's open-assignment counter,
// guarded so the WIP ceiling and availability are re-checked inside the
// resolver's transaction. A false return means the candidate lost the race
// or is no longer assignable.
func (r Repo) TryIncrementStaffLoadTx(ctx context.Context, tx *sql.Tx, staffID, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE staff_profiles
SET current_assignment_count = current_assignment_count + 1, updated_at=?
WHERE id=? AND availability_status=? AND current_assignment_count < individual_wip_limit`,
		updatedAt, staffID, domain.AvailabilityAvailable)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DecrementStaffLoadTx releases one slot of a staff member's open load.
func (r Repo) DecrementStaffLoadTx(ctx context.Context, tx *sql.Tx, staffID, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE staff_profiles
SET current_assignment_count = current_assignment_count - 1, updated_at=?
WHERE id=? AND current_assignment_count > 0`, updatedAt, staffID)
	return err
}

// UnitOpenLoadTx sums open assignments over a unit's available members.
func (r Repo) UnitOpenLoadTx(ctx context.Context, tx *sql.Tx, unitID string) (int, error) {
	var load int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(current_assignment_count),0) FROM staff_profiles
WHERE unit_id=? AND availability_status=?`, unitID, domain.AvailabilityAvailable).Scan(&load)
	return load, err
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
