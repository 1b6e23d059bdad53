package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
)

// caseStatusResponse is the reviewer view of one case.
type caseStatusResponse struct {
	CaseID        string                 `json:"case_id"`
	Status        string                 `json:"status"`
	Stage         string                 `json:"stage,omitempty"`
	Summary       string                 `json:"summary,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	WorkflowState string                 `json:"workflow_state,omitempty"`
	Actions       []map[string]any       `json:"actions,omitempty"`
}

// handleCaseStatus serves GET /cases/{id}/status.
func (h *ReviewHandler) handleCaseStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "cases" || parts[2] != "status" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	caseID, err := uuid.Parse(parts[1])
	if err != nil {
		http.Error(w, `{"error":"case id must be a uuid"}`, http.StatusBadRequest)
		return
	}

	caseRow, err := h.db.GetCase(r.Context(), caseID)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, `{"error":"case not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Case lookup failed", zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	resp := caseStatusResponse{
		CaseID:   caseRow.ID.String(),
		Status:   caseRow.Status,
		Metadata: caseRow.Metadata,
	}
	if caseRow.Stage != nil {
		resp.Stage = *caseRow.Stage
	}
	if caseRow.Summary != nil {
		resp.Summary = *caseRow.Summary
	}

	actions, err := h.db.ListActions(r.Context(), caseID)
	if err == nil {
		for _, a := range actions {
			resp.Actions = append(resp.Actions, map[string]any{
				"action_type":   a.ActionType,
				"status":        a.Status,
				"source_intent": a.SourceIntent,
				"result":        map[string]interface{}(a.Result),
			})
		}
	}

	if workflowID, ok := caseRow.Metadata["workflow_id"].(string); ok && workflowID != "" {
		resp.WorkflowState = h.describeWorkflow(r.Context(), workflowID)
	}

	writeJSON(w, http.StatusOK, resp)
}

// describeWorkflow maps the Temporal execution status to a short label.
// Best effort: an unreachable Temporal frontend leaves the field empty.
func (h *ReviewHandler) describeWorkflow(ctx context.Context, workflowID string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	desc, err := h.temporal.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		h.logger.Debug("Workflow describe failed",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		return ""
	}

	switch desc.GetWorkflowExecutionInfo().GetStatus() {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return "running"
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "completed"
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "failed"
	case enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "terminated"
	case enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "timed_out"
	case enums.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "canceled"
	default:
		return "unknown"
	}
}
