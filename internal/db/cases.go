package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// CreateCase inserts a new case row.
func (c *Client) CreateCase(ctx context.Context, row *CaseRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	if row.Metadata == nil {
		row.Metadata = JSONB{}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cases (id, customer_email, subject, status, stage, summary, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.ID, row.CustomerEmail, row.Subject, row.Status, row.Stage, row.Summary,
		row.Metadata, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}

	c.logger.Info("Case created",
		zap.String("case_id", row.ID.String()),
		zap.String("status", row.Status),
	)
	return nil
}

// GetCase fetches one case by id.
func (c *Client) GetCase(ctx context.Context, id uuid.UUID) (*CaseRow, error) {
	var row CaseRow
	err := c.db.GetContext(ctx, &row, `SELECT * FROM cases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	return &row, nil
}

// FindOpenCaseByEmail returns the most recent case for a sender that is
// still in progress, or ErrNotFound.
func (c *Client) FindOpenCaseByEmail(ctx context.Context, email string) (*CaseRow, error) {
	var row CaseRow
	err := c.db.GetContext(ctx, &row, `
		SELECT * FROM cases
		WHERE customer_email = $1 AND status NOT IN ('done', 'failed')
		ORDER BY created_at DESC
		LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open case for %s: %w", email, err)
	}
	return &row, nil
}

// UpdateCaseStatus sets status and stage. A nil stage clears it.
func (c *Client) UpdateCaseStatus(ctx context.Context, id uuid.UUID, status string, stage *string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE cases SET status = $2, stage = $3, updated_at = $4 WHERE id = $1`,
		id, status, stage, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update case status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCaseMetadata replaces the whole metadata object. Last writer wins;
// callers that need read-modify-write must serialize themselves.
func (c *Client) UpdateCaseMetadata(ctx context.Context, id uuid.UUID, metadata JSONB) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE cases SET metadata = $2, updated_at = $3 WHERE id = $1`,
		id, metadata, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update case metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCaseSummary stores the reviewer-facing summary.
func (c *Client) SetCaseSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE cases SET summary = $2, updated_at = $3 WHERE id = $1`,
		id, summary, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set case summary: %w", err)
	}
	return nil
}

// CloseCase moves a case to a terminal status and stamps closed_at.
func (c *Client) CloseCase(ctx context.Context, id uuid.UUID, status string, stage *string) error {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx, `
		UPDATE cases SET status = $2, stage = $3, updated_at = $4, closed_at = $4 WHERE id = $1`,
		id, status, stage, now,
	)
	if err != nil {
		return fmt.Errorf("failed to close case: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	c.logger.Info("Case closed",
		zap.String("case_id", id.String()),
		zap.String("status", status),
	)
	return nil
}
