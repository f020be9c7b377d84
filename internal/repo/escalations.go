package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

func (r Repo) InsertEscalationTx(ctx context.Context, tx *sql.Tx, ev domain.EscalationEvent) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO escalation_events(id,assignment_id,created_at,reason) VALUES (?,?,?,?)`,
		ev.ID, ev.AssignmentID, ev.CreatedAt, ev.Reason)
	return err
}

// HasEscalationTx reports whether an escalation was already recorded for
// the assignment.
func (r Repo) HasEscalationTx(ctx context.Context, tx *sql.Tx, assignmentID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM escalation_events WHERE assignment_id=?`, assignmentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListEscalations(ctx context.Context, limit int) ([]domain.EscalationEvent, error) {
	query := `SELECT id,assignment_id,created_at,reason FROM escalation_events ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EscalationEvent
	for rows.Next() {
		var ev domain.EscalationEvent
		if err := rows.Scan(&ev.ID, &ev.AssignmentID, &ev.CreatedAt, &ev.Reason); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

func (r Repo) GetEscalationByAssignment(ctx context.Context, assignmentID string) (domain.EscalationEvent, error) {
	var ev domain.EscalationEvent
	err := r.DB.QueryRowContext(ctx, `SELECT id,assignment_id,created_at,reason FROM escalation_events WHERE assignment_id=?`, assignmentID).
		Scan(&ev.ID, &ev.AssignmentID, &ev.CreatedAt, &ev.Reason)
	if err == sql.ErrNoRows {
		return ev, ErrNotFound
	}
	return ev, err
}
