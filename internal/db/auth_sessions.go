package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetAuthSession returns the auth session of a case, or ErrNotFound when
// no verification has happened yet.
func (c *Client) GetAuthSession(ctx context.Context, caseID uuid.UUID) (*AuthSessionRow, error) {
	var row AuthSessionRow
	err := c.db.GetContext(ctx, &row, `
		SELECT * FROM auth_sessions WHERE case_id = $1`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auth session for case %s: %w", caseID, err)
	}
	return &row, nil
}

// UpsertAuthSession writes the full auth session state for a case.
func (c *Client) UpsertAuthSession(ctx context.Context, row *AuthSessionRow) error {
	row.UpdatedAt = time.Now().UTC()
	if row.Provided == nil {
		row.Provided = JSONB{}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (case_id, status, error_type, required_fields, missing_fields, provided, attempts, customer_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (case_id) DO UPDATE SET
			status = EXCLUDED.status,
			error_type = EXCLUDED.error_type,
			required_fields = EXCLUDED.required_fields,
			missing_fields = EXCLUDED.missing_fields,
			provided = EXCLUDED.provided,
			attempts = EXCLUDED.attempts,
			customer_id = EXCLUDED.customer_id,
			updated_at = EXCLUDED.updated_at`,
		row.CaseID, row.Status, row.ErrorType, row.RequiredFields, row.MissingFields,
		row.Provided, row.Attempts, row.CustomerID, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert auth session: %w", err)
	}
	return nil
}
