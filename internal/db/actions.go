package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ReplaceCaseActions swaps the action plan of a case for a new one.
// Replanning after a customer reply supersedes the previous plan entirely.
func (c *Client) ReplaceCaseActions(ctx context.Context, caseID uuid.UUID, rows []ActionRow) error {
	return c.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE case_id = $1`, caseID); err != nil {
			return fmt.Errorf("failed to clear actions: %w", err)
		}

		now := time.Now().UTC()
		for i := range rows {
			row := &rows[i]
			if row.ID == uuid.Nil {
				row.ID = uuid.New()
			}
			row.CaseID = caseID
			row.CreatedAt = now
			row.UpdatedAt = now
			if row.Entities == nil {
				row.Entities = JSONB{}
			}
			if row.Result == nil {
				row.Result = JSONB{}
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO actions (id, case_id, action_type, status, source_intent, entities, result, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				row.ID, row.CaseID, row.ActionType, row.Status, row.SourceIntent,
				row.Entities, row.Result, row.CreatedAt, row.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert action %s: %w", row.ActionType, err)
			}
		}
		return nil
	})
}

// ListActions returns all actions of a case in creation order.
func (c *Client) ListActions(ctx context.Context, caseID uuid.UUID) ([]ActionRow, error) {
	var rows []ActionRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT * FROM actions WHERE case_id = $1 ORDER BY created_at ASC, id ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions for case %s: %w", caseID, err)
	}
	return rows, nil
}

// UpdateActionStatus marks one action executed or blocked with its result.
func (c *Client) UpdateActionStatus(ctx context.Context, id uuid.UUID, status string, result JSONB) error {
	if result == nil {
		result = JSONB{}
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE actions SET status = $2, result = $3, updated_at = $4 WHERE id = $1`,
		id, status, result, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update action status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
