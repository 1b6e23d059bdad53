package activities

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/metrics"
	"github.com/helioenergie/caseflow/internal/models"
	"github.com/helioenergie/caseflow/internal/planner"
)

// PlanInput asks the planner for action specs from one intent list.
type PlanInput struct {
	CaseID   uuid.UUID       `json:"case_id"`
	Intents  []models.Intent `json:"intents"`
	Entities models.Entities `json:"entities"`
	Branch   string          `json:"branch"`
}

// PlanResult carries the planned specs back to the workflow.
type PlanResult struct {
	Actions []models.ActionSpec `json:"actions"`
}

// PlanCaseActions runs the pure planner and records planning metrics.
// Persistence happens later, once the joined plan is final.
func (a *Activities) PlanCaseActions(ctx context.Context, in PlanInput) (PlanResult, error) {
	specs := planner.Plan(in.Intents, in.Entities, planner.MinConfidence)
	for _, s := range specs {
		metrics.ActionsPlanned.WithLabelValues(s.ActionType, string(s.Status)).Inc()
	}

	a.logger.Info("Actions planned",
		zap.String("case_id", in.CaseID.String()),
		zap.String("branch", in.Branch),
		zap.Int("actions", len(specs)),
	)
	return PlanResult{Actions: specs}, nil
}

// SaveCasePlanInput persists the joined action plan of a run.
type SaveCasePlanInput struct {
	CaseID  uuid.UUID           `json:"case_id"`
	Actions []models.ActionSpec `json:"actions"`
}

// SaveCasePlan replaces the stored actions with the run's joined plan and
// returns the persisted specs with their row ids filled in.
func (a *Activities) SaveCasePlan(ctx context.Context, in SaveCasePlanInput) (PlanResult, error) {
	rows := make([]db.ActionRow, 0, len(in.Actions))
	for _, s := range in.Actions {
		sourceIntent, _ := s.Result["intent_name"].(string)
		rows = append(rows, db.ActionRow{
			ActionType:   s.ActionType,
			Status:       string(s.Status),
			SourceIntent: sourceIntent,
			Result:       db.JSONB(s.Result),
		})
	}
	if err := a.db.ReplaceCaseActions(ctx, in.CaseID, rows); err != nil {
		return PlanResult{}, err
	}

	out := make([]models.ActionSpec, 0, len(rows))
	for i, row := range rows {
		spec := in.Actions[i]
		spec.ID = row.ID
		out = append(out, spec)
	}
	return PlanResult{Actions: out}, nil
}
