package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertMessage attaches an email to a case.
func (c *Client) InsertMessage(ctx context.Context, row *MessageRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now().UTC()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO messages (id, case_id, direction, from_addr, to_addr, subject, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.CaseID, row.Direction, row.FromAddr, row.ToAddr,
		row.Subject, row.Body, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns all messages of a case, oldest first.
func (c *Client) ListMessages(ctx context.Context, caseID uuid.UUID) ([]MessageRow, error) {
	var rows []MessageRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT * FROM messages WHERE case_id = $1 ORDER BY created_at ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for case %s: %w", caseID, err)
	}
	return rows, nil
}

// InsertExtraction stores one extraction pass for a case. At most one
// extraction exists per message; a retried activity that already wrote
// its row is a no-op.
func (c *Client) InsertExtraction(ctx context.Context, row *ExtractionRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now().UTC()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO extractions (id, case_id, message_id, intents, entities, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) WHERE message_id IS NOT NULL DO NOTHING`,
		row.ID, row.CaseID, row.MessageID, row.Intents, row.Entities, row.Confidence, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}
	return nil
}
