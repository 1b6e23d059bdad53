package activities

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/metrics"
)

// OpenReviewInput opens a human review slot for a draft.
type OpenReviewInput struct {
	CaseID  uuid.UUID `json:"case_id"`
	DraftID uuid.UUID `json:"draft_id"`
	// AutoApprove marks reviews the system decides itself, used for the
	// identity-request draft which needs no human sign-off.
	AutoApprove bool   `json:"auto_approve"`
	Summary     string `json:"summary,omitempty"`
}

// OpenReviewResult references the review row the workflow waits on.
type OpenReviewResult struct {
	ReviewID uuid.UUID `json:"review_id"`
}

// OpenReview writes the review row and the case summary reviewers see.
func (a *Activities) OpenReview(ctx context.Context, in OpenReviewInput) (OpenReviewResult, error) {
	row := &db.ReviewRow{CaseID: in.CaseID}
	if in.DraftID != uuid.Nil {
		draftID := in.DraftID
		row.DraftID = &draftID
	}
	if in.AutoApprove {
		row.Decision = db.ReviewApproved
		row.Reviewer = "system"
	}
	if err := a.db.CreateReview(ctx, row); err != nil {
		return OpenReviewResult{}, err
	}

	if in.Summary != "" {
		if err := a.db.SetCaseSummary(ctx, in.CaseID, in.Summary); err != nil {
			return OpenReviewResult{}, err
		}
	}

	a.logger.Info("Review opened",
		zap.String("case_id", in.CaseID.String()),
		zap.String("review_id", row.ID.String()),
		zap.Bool("auto_approve", in.AutoApprove),
	)
	return OpenReviewResult{ReviewID: row.ID}, nil
}

// ResolveReviewInput records the decision a reviewer made.
type ResolveReviewInput struct {
	ReviewID uuid.UUID `json:"review_id"`
	Decision string    `json:"decision"`
	Reviewer string    `json:"reviewer"`
	Comment  string    `json:"comment,omitempty"`
}

// ResolveReview persists the decision on the pending review row.
func (a *Activities) ResolveReview(ctx context.Context, in ResolveReviewInput) error {
	if err := a.db.ResolveReview(ctx, in.ReviewID, in.Decision, in.Reviewer, in.Comment); err != nil {
		return err
	}
	metrics.ReviewDecisions.WithLabelValues(in.Decision).Inc()
	return nil
}
