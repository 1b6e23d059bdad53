package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/models"
)

// ExecuteActionsInput runs the planned actions of an approved case.
type ExecuteActionsInput struct {
	CaseID     uuid.UUID `json:"case_id"`
	CustomerID string    `json:"customer_id,omitempty"`
}

// ExecuteActionsResult reports per-action outcomes.
type ExecuteActionsResult struct {
	Executed int `json:"executed"`
	Blocked  int `json:"blocked"`
}

// ExecuteActions loads the persisted plan and executes every action still
// in planned state. Execution failures mark the single action blocked and
// continue; one broken backend call must not lose the rest of the plan.
func (a *Activities) ExecuteActions(ctx context.Context, in ExecuteActionsInput) (ExecuteActionsResult, error) {
	rows, err := a.db.ListActions(ctx, in.CaseID)
	if err != nil {
		return ExecuteActionsResult{}, err
	}

	var out ExecuteActionsResult
	for _, row := range rows {
		if row.Status != string(models.ActionStatusPlanned) {
			continue
		}

		result, execErr := a.executeAction(ctx, in, row)
		status := string(models.ActionStatusExecuted)
		if execErr != nil {
			status = string(models.ActionStatusBlocked)
			result = db.JSONB{
				"blocked_reason": "execution_error",
				"error":          execErr.Error(),
			}
			out.Blocked++
			a.logger.Error("Action execution failed",
				zap.String("case_id", in.CaseID.String()),
				zap.String("action_type", row.ActionType),
				zap.Error(execErr),
			)
		} else {
			out.Executed++
		}

		if err := a.db.UpdateActionStatus(ctx, row.ID, status, result); err != nil {
			return out, err
		}
	}
	return out, nil
}

// executeAction performs the backend call for one action type. The
// backend integrations are table-driven stubs until the billing system
// exposes its API; the result payload shape is final.
func (a *Activities) executeAction(ctx context.Context, in ExecuteActionsInput, row db.ActionRow) (db.JSONB, error) {
	switch row.ActionType {
	case "submit_meter_reading":
		snapshot, _ := row.Result["entities_snapshot"].(map[string]interface{})
		value, _ := snapshot["meter_reading_value"].(string)
		if value == "" {
			return nil, fmt.Errorf("meter reading value missing from action snapshot")
		}
		return db.JSONB{
			"submitted":           true,
			"meter_reading_value": value,
			"customer_id":         in.CustomerID,
		}, nil
	case "update_personal_data":
		return db.JSONB{
			"ticket_created": true,
			"queue":          "personal-data",
			"customer_id":    in.CustomerID,
		}, nil
	case "handle_contract_issue":
		return db.JSONB{
			"ticket_created": true,
			"queue":          "contract-issues",
			"customer_id":    in.CustomerID,
		}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", row.ActionType)
	}
}
