package activities

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/mailer"
	"github.com/helioenergie/caseflow/internal/metrics"
	"github.com/helioenergie/caseflow/internal/models"
)

// SendDraftInput sends one draft to the customer.
type SendDraftInput struct {
	CaseID    uuid.UUID        `json:"case_id"`
	DraftID   uuid.UUID        `json:"draft_id"`
	DraftType models.DraftType `json:"draft_type"`
	To        string           `json:"to"`
	// Subject of the customer's original mail; the reply subject and the
	// routing token are derived from it.
	CaseSubject string `json:"case_subject"`
}

// SendDraft loads the draft, sends it over SMTP and records the outbound
// message. A Redis guard makes the send idempotent across activity
// retries; the guard is released on failure so a retry can send.
func (a *Activities) SendDraft(ctx context.Context, in SendDraftInput) error {
	if a.events != nil {
		ok, err := a.events.AcquireSendGuard(ctx, in.CaseID.String(), string(in.DraftType))
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Info("Send already performed, skipping",
				zap.String("case_id", in.CaseID.String()),
				zap.String("draft_type", string(in.DraftType)),
			)
			return nil
		}
	}

	draft, err := a.db.GetDraftByID(ctx, in.DraftID)
	if err != nil {
		a.releaseGuard(ctx, in)
		return err
	}

	subject := mailer.ReplySubject(in.CaseSubject)
	subject = mailer.SubjectWithCaseToken(subject, in.CaseID)

	if err := a.sender.Send(ctx, in.To, subject, draft.Body); err != nil {
		metrics.MailsSent.WithLabelValues(string(in.DraftType), "error").Inc()
		a.releaseGuard(ctx, in)
		return err
	}
	metrics.MailsSent.WithLabelValues(string(in.DraftType), "ok").Inc()

	if err := a.db.InsertMessage(ctx, &db.MessageRow{
		CaseID:    in.CaseID,
		Direction: db.DirectionOutbound,
		FromAddr:  a.cfg.SupportAddress,
		ToAddr:    in.To,
		Subject:   subject,
		Body:      draft.Body,
	}); err != nil {
		// The mail left the relay; a missing message row must not fail
		// the send. Reviewers still see the draft.
		a.logger.Error("Failed to record outbound message",
			zap.String("case_id", in.CaseID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (a *Activities) releaseGuard(ctx context.Context, in SendDraftInput) {
	if a.events == nil {
		return
	}
	if err := a.events.ReleaseSendGuard(ctx, in.CaseID.String(), string(in.DraftType)); err != nil {
		a.logger.Warn("Failed to release send guard",
			zap.String("case_id", in.CaseID.String()),
			zap.Error(err),
		)
	}
}
