package workflows

import (
	"github.com/google/uuid"
	"go.temporal.io/sdk/workflow"

	"github.com/helioenergie/caseflow/internal/activities"
	"github.com/helioenergie/caseflow/internal/models"
	"github.com/helioenergie/caseflow/internal/planner"
)

func copyMeta(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func setStatus(ctx workflow.Context, caseID uuid.UUID, status models.CaseStatus, stage string) error {
	return workflow.ExecuteActivity(ctx, ActivityUpdateCaseStatus, activities.UpdateCaseStatusInput{
		CaseID: caseID,
		Status: string(status),
		Stage:  stage,
	}).Get(ctx, nil)
}

func closeCase(ctx workflow.Context, caseID uuid.UUID, status models.CaseStatus, stage string) error {
	return workflow.ExecuteActivity(ctx, ActivityUpdateCaseStatus, activities.UpdateCaseStatusInput{
		CaseID: caseID,
		Status: string(status),
		Stage:  stage,
		Close:  true,
	}).Get(ctx, nil)
}

// emitEvent publishes a case event, best effort.
func emitEvent(ctx workflow.Context, record models.CaseRecord, eventType, stage, message string) {
	_ = workflow.ExecuteActivity(ctx, ActivityEmitCaseEvent, activities.EmitCaseEventInput{
		CaseID:  record.Case.ID,
		Type:    eventType,
		Stage:   stage,
		Message: message,
	}).Get(ctx, nil)
}

func failedResult(record models.CaseRecord, stage string) CaseResult {
	return CaseResult{
		CaseID:  record.Case.ID,
		Status:  models.CaseStatusFailed,
		Stage:   stage,
		Actions: record.Actions,
		Errors:  record.Errors,
	}
}

func findDraft(record models.CaseRecord, t models.DraftType) (models.DraftRef, bool) {
	for _, d := range record.Drafts {
		if d.Type == t {
			return d, true
		}
	}
	return models.DraftRef{}, false
}

// awaitReview opens the human review, parks the case in pending_review
// and blocks on the per-case review signal until a decision arrives or
// the timeout passes. Timeout counts as a rejection with no reviewer.
func awaitReview(
	ctx workflow.Context,
	record models.CaseRecord,
	authIntents, nonAuthIntents []models.Intent,
	topics []string,
	authState authBranchState,
) (ReviewSignal, uuid.UUID, error) {
	logger := workflow.GetLogger(ctx)

	authStatus := "not_required"
	if record.Auth != nil {
		authStatus = string(record.Auth.Status)
	}
	allIntents := append(append([]models.Intent{}, authIntents...), nonAuthIntents...)
	summary := planner.BuildInternalSummary(allIntents, topics, record.Actions, authStatus)

	draftID := uuid.Nil
	if ref, ok := findDraft(record, models.DraftTypePublicReply); ok {
		draftID = ref.ID
	}

	var opened activities.OpenReviewResult
	err := workflow.ExecuteActivity(ctx, ActivityOpenReview, activities.OpenReviewInput{
		CaseID:  record.Case.ID,
		DraftID: draftID,
		Summary: summary,
	}).Get(ctx, &opened)
	if err != nil {
		return ReviewSignal{}, uuid.Nil, err
	}

	if err := setStatus(ctx, record.Case.ID, models.CaseStatusPendingReview, ""); err != nil {
		return ReviewSignal{}, uuid.Nil, err
	}
	emitEvent(ctx, record, "review_requested", "", summary)

	ch := workflow.GetSignalChannel(ctx, ReviewSignalName(record.Case.ID))
	sel := workflow.NewSelector(ctx)
	timer := workflow.NewTimer(ctx, defaultReviewTimeout)

	var signal ReviewSignal
	var timedOut bool

	sel.AddReceive(ch, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &signal)
	})
	sel.AddFuture(timer, func(f workflow.Future) {
		timedOut = true
		signal = ReviewSignal{Decision: models.ReviewRejected, Comment: "review timeout"}
	})
	sel.Select(ctx)

	if timedOut {
		logger.Warn("Review timed out", "case_id", record.Case.ID.String())
	}
	return signal, opened.ReviewID, nil
}
