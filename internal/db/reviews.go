package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Review decisions
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// CreateReview opens a review slot for a draft.
func (c *Client) CreateReview(ctx context.Context, row *ReviewRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now().UTC()
	if row.Decision == "" {
		row.Decision = ReviewPending
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO reviews (id, case_id, draft_id, decision, reviewer, comment, decided_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.CaseID, row.DraftID, row.Decision, row.Reviewer,
		row.Comment, row.DecidedAt, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// ResolveReview records a reviewer's decision on a pending review.
func (c *Client) ResolveReview(ctx context.Context, id uuid.UUID, decision, reviewer, comment string) error {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx, `
		UPDATE reviews SET decision = $2, reviewer = $3, comment = $4, decided_at = $5
		WHERE id = $1 AND decision = $6`,
		id, decision, reviewer, comment, now, ReviewPending,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPendingReview returns the open review of a case, or ErrNotFound.
func (c *Client) GetPendingReview(ctx context.Context, caseID uuid.UUID) (*ReviewRow, error) {
	var row ReviewRow
	err := c.db.GetContext(ctx, &row, `
		SELECT * FROM reviews WHERE case_id = $1 AND decision = $2
		ORDER BY created_at DESC LIMIT 1`,
		caseID, ReviewPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending review for case %s: %w", caseID, err)
	}
	return &row, nil
}
