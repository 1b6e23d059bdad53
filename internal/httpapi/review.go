// Package httpapi exposes the reviewer-facing HTTP surface: login,
// review decisions and case status.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/auth"
	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/models"
	"github.com/helioenergie/caseflow/internal/workflows"
)

// ReviewHandler forwards reviewer decisions to the waiting workflow.
type ReviewHandler struct {
	temporal client.Client
	db       *db.Client
	logger   *zap.Logger
}

// NewReviewHandler creates a new handler.
func NewReviewHandler(t client.Client, dbClient *db.Client, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{temporal: t, db: dbClient, logger: logger}
}

// RegisterRoutes registers review routes on the provided mux, wrapped in
// the reviewer auth middleware.
func (h *ReviewHandler) RegisterRoutes(mux *http.ServeMux, mw *auth.Middleware) {
	mux.Handle("/reviews/decision", mw.Wrap(http.HandlerFunc(h.handleDecision)))
	mux.Handle("/cases/", mw.Wrap(http.HandlerFunc(h.handleCaseStatus)))
}

// reviewDecisionRequest is the expected payload for review decisions.
type reviewDecisionRequest struct {
	CaseID   string `json:"case_id"`
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
}

func (h *ReviewHandler) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	claims, ok := auth.ReviewerFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req reviewDecisionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("Decision decode error", zap.Error(err))
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		http.Error(w, `{"error":"case_id must be a uuid"}`, http.StatusBadRequest)
		return
	}
	if req.Decision != string(models.ReviewApproved) && req.Decision != string(models.ReviewRejected) {
		http.Error(w, `{"error":"decision must be approved or rejected"}`, http.StatusBadRequest)
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
	if caseRow.Status != string(models.CaseStatusPendingReview) {
		http.Error(w, `{"error":"case is not pending review"}`, http.StatusConflict)
		return
	}

	workflowID, _ := caseRow.Metadata["workflow_id"].(string)
	if workflowID == "" {
		workflowID = workflows.CaseWorkflowID(caseID)
	}

	signal := workflows.ReviewSignal{
		Decision: models.ReviewDecision(req.Decision),
		Reviewer: claims.Email,
		Comment:  req.Comment,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := h.temporal.SignalWorkflow(ctx, workflowID, "", workflows.ReviewSignalName(caseID), signal); err != nil {
		h.logger.Error("Failed to signal workflow",
			zap.String("workflow_id", workflowID),
			zap.String("case_id", caseID.String()),
			zap.Error(err),
		)
		http.Error(w, `{"error":"failed to signal workflow"}`, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "sent",
		"case_id":  caseID.String(),
		"decision": req.Decision,
	})
}

// writeJSON writes a JSON response with status and content-type.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
