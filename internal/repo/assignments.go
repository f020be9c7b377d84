package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

const assignmentColumns = `id,work_item_id,work_item_type,assignee_id,unit_id,priority,status,assigned_at,sla_deadline,sla_status,score,completed_at`

func scanAssignment(row interface{ Scan(...any) error }) (domain.Assignment, error) {
	var a domain.Assignment
	var unitID, completedAt sql.NullString
	err := row.Scan(&a.ID, &a.WorkItemID, &a.WorkItemType, &a.AssigneeID, &unitID, &a.Priority,
		&a.Status, &a.AssignedAt, &a.SLADeadline, &a.SLAStatus, &a.Score, &completedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if unitID.Valid {
		a.UnitID = &unitID.String
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.String
	}
	return a, nil
}

func (r Repo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assignments(`+assignmentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.WorkItemID, a.WorkItemType, a.AssigneeID, nullableStringPtr(a.UnitID), a.Priority,
		a.Status, a.AssignedAt, a.SLADeadline, a.SLAStatus, a.Score, nullableStringPtr(a.CompletedAt))
	return err
}

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	return scanAssignment(r.DB.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id))
}

func (r Repo) GetAssignmentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Assignment, error) {
	return scanAssignment(tx.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id))
}

type AssignmentFilters struct {
	Status     string
	SLAStatus  string
	AssigneeID string
	Limit      int
}

func (r Repo) ListAssignments(ctx context.Context, f AssignmentFilters) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	if f.SLAStatus != "" {
		query += ` AND sla_status=?`
		args = append(args, f.SLAStatus)
	}
	if f.AssigneeID != "" {
		query += ` AND assignee_id=?`
		args = append(args, f.AssigneeID)
	}
	query += ` ORDER BY assigned_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ListOpenAssignmentsTx loads every non-terminal assignment for a sweep pass.
func (r Repo) ListOpenAssignmentsTx(ctx context.Context, tx *sql.Tx) ([]domain.Assignment, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments
WHERE status IN (?,?) ORDER BY id`, domain.StatusAssigned, domain.StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

type SLAUpdate struct {
	AssignmentID string
	SLAStatus    string
}

// ApplySLAUpdatesTx writes a batch of sweep transitions through one
// prepared statement.
func (r Repo) ApplySLAUpdatesTx(ctx context.Context, tx *sql.Tx, updates []SLAUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `UPDATE assignments SET sla_status=? WHERE id=?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.SLAStatus, u.AssignmentID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) SetAssignmentStatusTx(ctx context.Context, tx *sql.Tx, id, status string, completedAt *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET status=?, completed_at=? WHERE id=?`,
		status, nullableStringPtr(completedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAssignmentsBy groups assignment totals by status, sla_status or priority.
func (r Repo) CountAssignmentsBy(ctx context.Context, column string) (map[string]int, error) {
	switch column {
	case "status", "sla_status", "priority":
	default:
		return nil, ErrNotFound
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM assignments GROUP BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
