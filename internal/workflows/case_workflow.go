package workflows

import (
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helioenergie/caseflow/internal/activities"
	"github.com/helioenergie/caseflow/internal/models"
	"github.com/helioenergie/caseflow/internal/planner"
	"github.com/helioenergie/caseflow/internal/policy"
)

// Activity names as registered on the worker.
const (
	ActivityResolveCase        = "ResolveCase"
	ActivityExtract            = "ExtractIntentsEntities"
	ActivityEvaluateAuth       = "EvaluateAuthSession"
	ActivityPlanActions        = "PlanCaseActions"
	ActivitySavePlan           = "SaveCasePlan"
	ActivityMergeDraft         = "MergeDraft"
	ActivityOpenReview         = "OpenReview"
	ActivityResolveReview      = "ResolveReview"
	ActivitySendDraft          = "SendDraft"
	ActivityExecuteActions     = "ExecuteActions"
	ActivityUpdateCaseStatus   = "UpdateCaseStatus"
	ActivityUpdateCaseMetadata = "UpdateCaseMetadata"
	ActivityEmitCaseEvent      = "EmitCaseEvent"
)

const defaultReviewTimeout = 72 * time.Hour

// caseGraph declares the fixed case processing graph. Compiling it at
// workflow start validates the step wiring; the workflow body then follows
// the compiled order.
var caseGraph = StepGraph{
	Name: "case",
	Steps: []StepSpec{
		{ID: "resolve_case", Kind: StepActivity},
		{ID: "extract", Kind: StepActivity, DependsOn: []string{"resolve_case"}},
		{ID: "split_intents", Kind: StepLocal, DependsOn: []string{"extract"}},
		{ID: "evaluate_auth", Kind: StepActivity, Branch: "auth", DependsOn: []string{"split_intents"}},
		{ID: "plan_auth", Kind: StepActivity, Branch: "auth", DependsOn: []string{"evaluate_auth"}},
		{ID: "draft_auth", Kind: StepActivity, Branch: "auth", DependsOn: []string{"plan_auth"}},
		{ID: "plan_non_auth", Kind: StepActivity, Branch: "non_auth", DependsOn: []string{"split_intents"}},
		{ID: "draft_non_auth", Kind: StepActivity, Branch: "non_auth", DependsOn: []string{"plan_non_auth"}},
		{ID: "join", Kind: StepLocal, DependsOn: []string{"draft_auth", "draft_non_auth"}},
		{ID: "review", Kind: StepGate, DependsOn: []string{"join"}},
		{ID: "finalize", Kind: StepActivity, DependsOn: []string{"review"}},
	},
}

// CaseWorkflow processes one inbound customer mail end to end: case
// resolution, extraction, the parallel auth and non-auth branches, the
// join barrier, human review and finalization.
func CaseWorkflow(ctx workflow.Context, input CaseInput) (CaseResult, error) {
	logger := workflow.GetLogger(ctx)

	plan, err := Compile(caseGraph)
	if err != nil {
		return CaseResult{}, err
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var record models.CaseRecord

	// resolve_case
	var resolved activities.ResolveCaseResult
	err = workflow.ExecuteActivity(ctx, ActivityResolveCase, activities.ResolveCaseInput{
		From:    input.From,
		To:      input.To,
		Subject: input.Subject,
		Body:    input.Body,
	}).Get(ctx, &resolved)
	if err != nil {
		return CaseResult{}, err
	}
	record = record.Apply(models.Update{Case: &resolved.Case, Message: &resolved.Message})

	// Store the workflow id so the review API can signal this run knowing
	// only the case id. Full metadata overwrite, matching the repository.
	meta := copyMeta(record.Case.StatusMeta)
	meta["workflow_id"] = workflow.GetInfo(ctx).WorkflowExecution.ID
	record.Case.StatusMeta = meta
	if err := workflow.ExecuteActivity(ctx, ActivityUpdateCaseMetadata, activities.UpdateCaseMetadataInput{
		CaseID:   record.Case.ID,
		Metadata: meta,
	}).Get(ctx, nil); err != nil {
		return CaseResult{}, err
	}

	emitEvent(ctx, record, "case_resolved", "", "")
	emitEvent(ctx, record, "plan_compiled", "", plan.Describe())

	// extract
	var extracted activities.ExtractResult
	err = workflow.ExecuteActivity(ctx, ActivityExtract, activities.ExtractInput{
		CaseID:    record.Case.ID,
		MessageID: record.Message.ID,
		Subject:   record.Message.Subject,
		Body:      record.Message.Body,
		Sender:    record.Message.FromEmail,
	}).Get(ctx, &extracted)
	if err != nil {
		record = record.RecordError("extraction", err.Error())
		_ = closeCase(ctx, record.Case.ID, models.CaseStatusFailed, "extraction_failed")
		return failedResult(record, "extraction_failed"), nil
	}
	record = record.Apply(models.Update{Extraction: &extracted.Extraction})

	// split_intents
	authIntents, nonAuthIntents, dropped := policy.Split(extracted.Extraction.Intents)
	if dropped > 0 {
		logger.Warn("Dropped unnamed intents during split", "dropped", dropped)
	}
	record = record.Apply(models.Update{AuthIntents: authIntents, NonAuthIntents: nonAuthIntents})

	entities := extracted.Extraction.Entities
	topics := planner.TopicKeywords(entities)

	// Branch fan-out. Temporal coroutines are cooperatively scheduled, so
	// the branches may read and update the shared record without locks.
	branchesDone := 0
	var branchErr error
	authState := authBranchState{}

	workflow.Go(ctx, func(gctx workflow.Context) {
		defer func() { branchesDone++ }()
		update, state, err := runAuthBranch(gctx, record.Case, record.Message, authIntents, entities, topics)
		if err != nil {
			branchErr = err
			return
		}
		authState = state
		record = record.Apply(update)
	})

	workflow.Go(ctx, func(gctx workflow.Context) {
		defer func() { branchesDone++ }()
		update, err := runNonAuthBranch(gctx, record.Case, record.Message, nonAuthIntents, entities, topics)
		if err != nil {
			branchErr = err
			return
		}
		record = record.Apply(update)
	})

	if err := workflow.Await(ctx, func() bool { return branchesDone == 2 }); err != nil {
		return CaseResult{}, err
	}
	if branchErr != nil {
		return CaseResult{}, branchErr
	}

	// join
	if !record.Join() {
		// The auth branch parked the case waiting for the customer (or a
		// send failure). The run ends here; the customer's reply starts a
		// fresh run against the same case.
		emitEvent(ctx, record, "run_parked", authState.Stage, "")
		return CaseResult{
			CaseID:  record.Case.ID,
			Status:  authState.ParkedStatus,
			Stage:   authState.Stage,
			Actions: record.Actions,
			Errors:  record.Errors,
		}, nil
	}

	if authState.Failed {
		record = record.RecordError("auth", "identity verification failed")
		_ = closeCase(ctx, record.Case.ID, models.CaseStatusFailed, "auth_failed")
		emitEvent(ctx, record, "case_failed", "auth_failed", "")
		return failedResult(record, "auth_failed"), nil
	}

	// Persist the joined plan before review so reviewers see exactly what
	// will execute.
	var savedPlan activities.PlanResult
	err = workflow.ExecuteActivity(ctx, ActivitySavePlan, activities.SaveCasePlanInput{
		CaseID:  record.Case.ID,
		Actions: record.Actions,
	}).Get(ctx, &savedPlan)
	if err != nil {
		return CaseResult{}, err
	}
	record.Actions = savedPlan.Actions

	// review gate
	decision, reviewID, err := awaitReview(ctx, record, authIntents, nonAuthIntents, topics, authState)
	if err != nil {
		return CaseResult{}, err
	}

	if reviewID != uuid.Nil {
		_ = workflow.ExecuteActivity(ctx, ActivityResolveReview, activities.ResolveReviewInput{
			ReviewID: reviewID,
			Decision: string(decision.Decision),
			Reviewer: decision.Reviewer,
			Comment:  decision.Comment,
		}).Get(ctx, nil)
	}

	if decision.Decision != models.ReviewApproved {
		stage := "review_rejected"
		if decision.Reviewer == "" {
			stage = "review_timeout"
		}
		_ = closeCase(ctx, record.Case.ID, models.CaseStatusFailed, stage)
		emitEvent(ctx, record, "case_failed", stage, decision.Comment)
		return failedResult(record, stage), nil
	}

	// finalize
	var execResult activities.ExecuteActionsResult
	err = workflow.ExecuteActivity(ctx, ActivityExecuteActions, activities.ExecuteActionsInput{
		CaseID:     record.Case.ID,
		CustomerID: authState.CustomerID,
	}).Get(ctx, &execResult)
	if err != nil {
		record = record.RecordError("execute_actions", err.Error())
		_ = closeCase(ctx, record.Case.ID, models.CaseStatusFailed, "execution_failed")
		return failedResult(record, "execution_failed"), nil
	}

	if ref, ok := findDraft(record, models.DraftTypePublicReply); ok {
		err = workflow.ExecuteActivity(ctx, ActivitySendDraft, activities.SendDraftInput{
			CaseID:      record.Case.ID,
			DraftID:     ref.ID,
			DraftType:   models.DraftTypePublicReply,
			To:          record.Message.FromEmail,
			CaseSubject: record.Message.Subject,
		}).Get(ctx, nil)
		if err != nil {
			record = record.RecordError("send_reply", err.Error())
			_ = closeCase(ctx, record.Case.ID, models.CaseStatusFailed, "reply_send_failed")
			return failedResult(record, "reply_send_failed"), nil
		}
	}

	if err := closeCase(ctx, record.Case.ID, models.CaseStatusDone, ""); err != nil {
		return CaseResult{}, err
	}
	emitEvent(ctx, record, "case_done", "", "")

	return CaseResult{
		CaseID:  record.Case.ID,
		Status:  models.CaseStatusDone,
		Actions: record.Actions,
		Errors:  record.Errors,
	}, nil
}
