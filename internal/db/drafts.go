package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const draftMergeMaxAttempts = 3

// draftBodySeparator is visible in the merged draft so reviewers can tell
// which branch contributed which part.
const draftBodySeparator = "\n\n---\n\n"

// MergeDraft writes a draft contribution for (case, type). The first writer
// creates the row; later writers append their body under a separator and
// keep the original subject. Summary and action specs are overwritten only
// when the incoming contribution carries non-empty action specs, so a
// branch without actions cannot wipe the plan another branch stored.
// Concurrent writers retry on conflict, bounded.
func (c *Client) MergeDraft(ctx context.Context, incoming *DraftRow) (*DraftRow, error) {
	var merged *DraftRow
	var lastErr error

	for attempt := 1; attempt <= draftMergeMaxAttempts; attempt++ {
		err := c.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			var err error
			merged, err = mergeDraftTx(ctx, tx, incoming)
			return err
		})
		if err == nil {
			return merged, nil
		}
		lastErr = err
		if !errors.Is(err, errStaleDraft) && !isRetryableWriteError(errors.Unwrap(err)) && !isRetryableWriteError(err) {
			return nil, err
		}
		c.logger.Warn("Draft merge conflict, retrying",
			zap.String("case_id", incoming.CaseID.String()),
			zap.String("draft_type", incoming.DraftType),
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("draft merge failed after %d attempts: %w", draftMergeMaxAttempts, lastErr)
}

func mergeDraftTx(ctx context.Context, tx *sqlx.Tx, incoming *DraftRow) (*DraftRow, error) {
	now := time.Now().UTC()

	var existing DraftRow
	err := tx.GetContext(ctx, &existing, `
		SELECT * FROM drafts WHERE case_id = $1 AND draft_type = $2 FOR UPDATE`,
		incoming.CaseID, incoming.DraftType)

	if errors.Is(err, sql.ErrNoRows) {
		row := DraftRow{
			ID:        uuid.New(),
			CaseID:    incoming.CaseID,
			DraftType: incoming.DraftType,
			Subject:   incoming.Subject,
			Body:      incoming.Body,
			Summary:   incoming.Summary,
			Actions:   incoming.Actions,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if row.Actions == nil {
			row.Actions = JSONBArray{}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drafts (id, case_id, draft_type, subject, body, summary, actions, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			row.ID, row.CaseID, row.DraftType, row.Subject, row.Body, row.Summary,
			row.Actions, row.Version, row.CreatedAt, row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert draft: %w", err)
		}
		return &row, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft for merge: %w", err)
	}

	existing.Body = existing.Body + draftBodySeparator + incoming.Body
	if len(incoming.Actions) > 0 {
		existing.Summary = incoming.Summary
		existing.Actions = incoming.Actions
	}
	existing.Version++
	existing.UpdatedAt = now

	res, err := tx.ExecContext(ctx, `
		UPDATE drafts SET body = $2, summary = $3, actions = $4, version = $5, updated_at = $6
		WHERE id = $1 AND version = $7`,
		existing.ID, existing.Body, existing.Summary, existing.Actions,
		existing.Version, existing.UpdatedAt, existing.Version-1,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("draft version moved under us: %w", errStaleDraft)
	}
	return &existing, nil
}

var errStaleDraft = errors.New("stale draft version")

// GetDraft returns the current draft of a given type for a case.
func (c *Client) GetDraft(ctx context.Context, caseID uuid.UUID, draftType string) (*DraftRow, error) {
	var row DraftRow
	err := c.db.GetContext(ctx, &row, `
		SELECT * FROM drafts WHERE case_id = $1 AND draft_type = $2`,
		caseID, draftType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft for case %s: %w", caseID, err)
	}
	return &row, nil
}

// GetDraftByID returns one draft by primary key.
func (c *Client) GetDraftByID(ctx context.Context, id uuid.UUID) (*DraftRow, error) {
	var row DraftRow
	err := c.db.GetContext(ctx, &row, `SELECT * FROM drafts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %s: %w", id, err)
	}
	return &row, nil
}
