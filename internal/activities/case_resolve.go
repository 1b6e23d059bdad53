package activities

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/mailer"
	"github.com/helioenergie/caseflow/internal/models"
	"github.com/helioenergie/caseflow/internal/streaming"
)

// ResolveCaseInput is the raw inbound mail handed to the workflow.
type ResolveCaseInput struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ResolveCaseResult carries the case and message snapshots for the run.
type ResolveCaseResult struct {
	Case    models.CaseSnapshot    `json:"case"`
	Message models.MessageSnapshot `json:"message"`
	Created bool                   `json:"created"`
}

// ResolveCase links an inbound mail to its case. A "[CASE: <uuid>]" token
// in subject or body wins; otherwise the sender's most recent open case is
// reused; otherwise a new case is created. The inbound message is stored
// either way.
func (a *Activities) ResolveCase(ctx context.Context, in ResolveCaseInput) (ResolveCaseResult, error) {
	caseRow, created, err := a.resolveCaseRow(ctx, in)
	if err != nil {
		return ResolveCaseResult{}, err
	}

	msg := &db.MessageRow{
		CaseID:    caseRow.ID,
		Direction: db.DirectionInbound,
		FromAddr:  in.From,
		ToAddr:    in.To,
		Subject:   in.Subject,
		Body:      in.Body,
	}
	if err := a.db.InsertMessage(ctx, msg); err != nil {
		return ResolveCaseResult{}, err
	}

	a.logger.Info("Case resolved",
		zap.String("case_id", caseRow.ID.String()),
		zap.Bool("created", created),
		zap.String("from", in.From),
	)

	return ResolveCaseResult{
		Case:    caseSnapshot(caseRow),
		Message: messageSnapshot(msg),
		Created: created,
	}, nil
}

func (a *Activities) resolveCaseRow(ctx context.Context, in ResolveCaseInput) (*db.CaseRow, bool, error) {
	if id, ok := mailer.ExtractCaseToken(in.Subject, in.Body); ok {
		row, err := a.db.GetCase(ctx, id)
		if err == nil && row.Status != string(models.CaseStatusDone) && row.Status != string(models.CaseStatusFailed) {
			return row, false, nil
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, false, err
		}
		// Unknown or closed case id: fall through to sender lookup.
	}

	row, err := a.db.FindOpenCaseByEmail(ctx, in.From)
	if err == nil {
		return row, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, err
	}

	fresh := &db.CaseRow{
		CustomerEmail: in.From,
		Subject:       mailer.NormalizeSubject(in.Subject),
		Status:        string(models.CaseStatusNew),
		Metadata:      db.JSONB{"auth_attempts": 0},
	}
	if err := a.db.CreateCase(ctx, fresh); err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

func caseSnapshot(row *db.CaseRow) models.CaseSnapshot {
	meta := map[string]interface{}(row.Metadata)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return models.CaseSnapshot{
		ID:         row.ID,
		Status:     models.CaseStatus(row.Status),
		StatusMeta: meta,
		Channel:    "email",
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func messageSnapshot(row *db.MessageRow) models.MessageSnapshot {
	return models.MessageSnapshot{
		ID:         row.ID,
		CaseID:     row.CaseID,
		Direction:  row.Direction,
		Subject:    row.Subject,
		Body:       row.Body,
		FromEmail:  row.FromAddr,
		ToEmail:    row.ToAddr,
		ReceivedAt: row.CreatedAt,
	}
}

// UpdateCaseStatusInput moves a case through its lifecycle.
type UpdateCaseStatusInput struct {
	CaseID uuid.UUID `json:"case_id"`
	Status string    `json:"status"`
	Stage  string    `json:"stage,omitempty"`
	Close  bool      `json:"close,omitempty"`
}

// UpdateCaseStatus persists a status transition.
func (a *Activities) UpdateCaseStatus(ctx context.Context, in UpdateCaseStatusInput) error {
	var stage *string
	if in.Stage != "" {
		stage = &in.Stage
	}
	if in.Close {
		return a.db.CloseCase(ctx, in.CaseID, in.Status, stage)
	}
	return a.db.UpdateCaseStatus(ctx, in.CaseID, in.Status, stage)
}

// UpdateCaseMetadataInput replaces the case status metadata.
type UpdateCaseMetadataInput struct {
	CaseID   uuid.UUID              `json:"case_id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// UpdateCaseMetadata replaces the whole metadata object, last writer wins.
func (a *Activities) UpdateCaseMetadata(ctx context.Context, in UpdateCaseMetadataInput) error {
	return a.db.UpdateCaseMetadata(ctx, in.CaseID, db.JSONB(in.Metadata))
}

// EmitCaseEventInput is one case lifecycle event for reviewers.
type EmitCaseEventInput struct {
	CaseID  uuid.UUID `json:"case_id"`
	Type    string    `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message,omitempty"`
}

// EmitCaseEvent publishes to the case's event stream. Failures are
// swallowed after logging so eventing never blocks case progress.
func (a *Activities) EmitCaseEvent(ctx context.Context, in EmitCaseEventInput) error {
	if a.events == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_ = a.events.Publish(ctx, streaming.Event{
		CaseID:  in.CaseID.String(),
		Type:    in.Type,
		Stage:   in.Stage,
		Message: in.Message,
	})
	return nil
}
