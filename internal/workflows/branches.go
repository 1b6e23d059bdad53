package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/helioenergie/caseflow/internal/activities"
	"github.com/helioenergie/caseflow/internal/identity"
	"github.com/helioenergie/caseflow/internal/models"
	"github.com/helioenergie/caseflow/internal/planner"
)

// authBranchState is what the auth branch reports back to the main
// workflow body beyond the record update.
type authBranchState struct {
	// Failed is set when verification is terminally failed (attempt
	// ceiling or policy error).
	Failed bool
	// ParkedStatus and Stage describe where the case sits when the branch
	// suspended the run waiting on the customer.
	ParkedStatus models.CaseStatus
	Stage        string
	CustomerID   string
}

// runAuthBranch drives the identity-gated side of the case: evaluate the
// auth session, then either plan actions (verified), request the missing
// fields from the customer (incomplete), or give up (ceiling reached).
// AuthDone stays unset on the request-more-info path so the join barrier
// cannot fire; the run parks and a later run picks the case up again.
func runAuthBranch(
	ctx workflow.Context,
	caseSnap models.CaseSnapshot,
	msg models.MessageSnapshot,
	intents []models.Intent,
	entities models.Entities,
	topics []string,
) (models.Update, authBranchState, error) {
	logger := workflow.GetLogger(ctx)
	done := true

	if len(intents) == 0 {
		return models.Update{AuthDone: &done}, authBranchState{}, nil
	}

	var eval activities.AuthEvalResult
	err := workflow.ExecuteActivity(ctx, ActivityEvaluateAuth, activities.AuthEvalInput{
		CaseID:      caseSnap.ID,
		CaseMeta:    caseSnap.StatusMeta,
		Entities:    entities,
		AuthIntents: intents,
	}).Get(ctx, &eval)
	if err != nil {
		return models.Update{}, authBranchState{}, err
	}

	update := models.Update{Auth: &eval.Auth}

	switch eval.Status {
	case models.AuthStatusSuccess:
		var plan activities.PlanResult
		err := workflow.ExecuteActivity(ctx, ActivityPlanActions, activities.PlanInput{
			CaseID:   caseSnap.ID,
			Intents:  intents,
			Entities: entities,
			Branch:   "auth",
		}).Get(ctx, &plan)
		if err != nil {
			return models.Update{}, authBranchState{}, err
		}
		update.Actions = plan.Actions

		var merged activities.MergeDraftResult
		err = workflow.ExecuteActivity(ctx, ActivityMergeDraft, activities.MergeDraftInput{
			CaseID:    caseSnap.ID,
			DraftType: models.DraftTypePublicReply,
			Subject:   msg.Subject,
			Body:      planner.BuildCustomerReply(topics, plan.Actions),
			Summary:   planner.BuildInternalSummary(intents, topics, plan.Actions, string(eval.Status)),
			Actions:   plan.Actions,
		}).Get(ctx, &merged)
		if err != nil {
			return models.Update{}, authBranchState{}, err
		}
		update.Drafts = []models.DraftRef{merged.Draft}
		update.AuthDone = &done
		return update, authBranchState{CustomerID: eval.CustomerID}, nil

	case models.AuthStatusMissing:
		// The case only enters waiting_auth when verification is actually
		// incomplete; a clean success keeps its pre-auth status.
		if err := setStatus(ctx, caseSnap.ID, models.CaseStatusWaitingAuth, ""); err != nil {
			return models.Update{}, authBranchState{}, err
		}
		state, err := requestMissingFields(ctx, caseSnap, msg, eval)
		if err != nil {
			return models.Update{}, authBranchState{}, err
		}
		if state.Stage == "auth_request_send_failed" {
			update.Errors = []models.StepError{{Stage: state.Stage, Error: "identity request mail was not sent"}}
		}
		return update, state, nil

	default: // failed
		logger.Warn("Identity verification terminally failed",
			"case_id", caseSnap.ID.String(),
			"error_type", eval.ErrorType,
			"attempts", eval.Attempts,
		)
		update.AuthDone = &done
		update.Errors = []models.StepError{{Stage: "auth", Error: "verification " + string(eval.ErrorType)}}
		return update, authBranchState{Failed: true}, nil
	}
}

// requestMissingFields drafts and sends the identity request. The review
// row is auto-approved: asking a customer for their own data needs no
// human sign-off. On send success the case waits for the customer; on
// failure it parks in pending_review so an operator can intervene.
//
// A mismatch under the attempt ceiling has no missing fields; the mail
// then says the details did not match and re-lists the required set.
func requestMissingFields(
	ctx workflow.Context,
	caseSnap models.CaseSnapshot,
	msg models.MessageSnapshot,
	eval activities.AuthEvalResult,
) (authBranchState, error) {
	body := planner.BuildAuthRequestReply(caseSnap.ID.String(), eval.MissingFields)
	summary := planner.BuildAuthRequestSummary(eval.RequiredFields, eval.MissingFields, eval.Auth.ProvidedFields)
	if eval.ErrorType == string(identity.ErrorMismatch) {
		body = planner.BuildAuthMismatchReply(caseSnap.ID.String(), eval.RequiredFields)
		summary = planner.BuildAuthMismatchSummary(eval.RequiredFields, eval.Auth.ProvidedFields, eval.Attempts)
	}

	var merged activities.MergeDraftResult
	err := workflow.ExecuteActivity(ctx, ActivityMergeDraft, activities.MergeDraftInput{
		CaseID:    caseSnap.ID,
		DraftType: models.DraftTypeAuthRequest,
		Subject:   msg.Subject,
		Body:      body,
		Summary:   summary,
	}).Get(ctx, &merged)
	if err != nil {
		return authBranchState{}, err
	}

	err = workflow.ExecuteActivity(ctx, ActivityOpenReview, activities.OpenReviewInput{
		CaseID:      caseSnap.ID,
		DraftID:     merged.Draft.ID,
		AutoApprove: true,
	}).Get(ctx, nil)
	if err != nil {
		return authBranchState{}, err
	}

	err = workflow.ExecuteActivity(ctx, ActivitySendDraft, activities.SendDraftInput{
		CaseID:      caseSnap.ID,
		DraftID:     merged.Draft.ID,
		DraftType:   models.DraftTypeAuthRequest,
		To:          msg.FromEmail,
		CaseSubject: msg.Subject,
	}).Get(ctx, nil)
	if err != nil {
		if serr := setStatus(ctx, caseSnap.ID, models.CaseStatusPendingReview, "auth_request_send_failed"); serr != nil {
			return authBranchState{}, serr
		}
		return authBranchState{
			ParkedStatus: models.CaseStatusPendingReview,
			Stage:        "auth_request_send_failed",
		}, nil
	}

	if err := setStatus(ctx, caseSnap.ID, models.CaseStatusWaitingCustomer, ""); err != nil {
		return authBranchState{}, err
	}
	return authBranchState{ParkedStatus: models.CaseStatusWaitingCustomer}, nil
}

// runNonAuthBranch plans and drafts for the intents that need no
// verification. It always completes within the run.
func runNonAuthBranch(
	ctx workflow.Context,
	caseSnap models.CaseSnapshot,
	msg models.MessageSnapshot,
	intents []models.Intent,
	entities models.Entities,
	topics []string,
) (models.Update, error) {
	done := true
	if len(intents) == 0 {
		return models.Update{NonAuthDone: &done}, nil
	}

	var plan activities.PlanResult
	err := workflow.ExecuteActivity(ctx, ActivityPlanActions, activities.PlanInput{
		CaseID:   caseSnap.ID,
		Intents:  intents,
		Entities: entities,
		Branch:   "non_auth",
	}).Get(ctx, &plan)
	if err != nil {
		return models.Update{}, err
	}

	var merged activities.MergeDraftResult
	err = workflow.ExecuteActivity(ctx, ActivityMergeDraft, activities.MergeDraftInput{
		CaseID:    caseSnap.ID,
		DraftType: models.DraftTypePublicReply,
		Subject:   msg.Subject,
		Body:      planner.BuildCustomerReply(topics, plan.Actions),
		Summary:   planner.BuildInternalSummary(intents, topics, plan.Actions, "not_required"),
		Actions:   plan.Actions,
	}).Get(ctx, &merged)
	if err != nil {
		return models.Update{}, err
	}

	return models.Update{
		Actions:     plan.Actions,
		Drafts:      []models.DraftRef{merged.Draft},
		NonAuthDone: &done,
	}, nil
}
