package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enums "go.temporal.io/api/enums/v1"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/mocks"
	"go.uber.org/zap/zaptest"

	"github.com/helioenergie/caseflow/internal/auth"
	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/workflows"
)

func newTestDB(t *testing.T) (*db.Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	client := db.NewClientFromDB(sqlx.NewDb(mockDB, "postgres"), zaptest.NewLogger(t))
	t.Cleanup(func() { _ = client.Close() })
	return client, sqlMock
}

func caseColumns() []string {
	return []string{"id", "customer_email", "subject", "status", "stage", "summary", "metadata", "created_at", "updated_at", "closed_at"}
}

func expectCaseRow(sqlMock sqlmock.Sqlmock, caseID uuid.UUID, status string, metadata string) {
	now := time.Now().UTC()
	sqlMock.ExpectQuery(`SELECT \* FROM cases WHERE id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows(caseColumns()).
			AddRow(caseID, "kunde@example.com", "Zählerstand", status, nil, nil, []byte(metadata), now, now, nil))
}

func decisionRequest(t *testing.T, body any, claims *auth.ReviewerClaims) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, "/reviews/decision", &buf)
	if claims != nil {
		req = req.WithContext(auth.ContextWithReviewer(req.Context(), claims))
	}
	return req
}

func reviewerClaims() *auth.ReviewerClaims {
	return &auth.ReviewerClaims{Email: "alex@example.com", Role: "reviewer"}
}

// TestDecisionApproved tests the happy path: a pending case gets its
// workflow signaled with the reviewer's decision.
func TestDecisionApproved(t *testing.T) {
	dbClient, sqlMock := newTestDB(t)
	caseID := uuid.New()
	workflowID := "manual-workflow-id"
	expectCaseRow(sqlMock, caseID, "pending_review", fmt.Sprintf(`{"workflow_id": %q}`, workflowID))

	temporalClient := &mocks.Client{}
	temporalClient.On("SignalWorkflow", mock.Anything, workflowID, "", workflows.ReviewSignalName(caseID), mock.Anything).
		Return(nil).Once()

	h := NewReviewHandler(temporalClient, dbClient, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.handleDecision(rec, decisionRequest(t, map[string]string{
		"case_id":  caseID.String(),
		"decision": "approved",
		"comment":  "looks right",
	}, reviewerClaims()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sent", resp["status"])
	assert.Equal(t, "approved", resp["decision"])
	temporalClient.AssertExpectations(t)

	sentSignal := temporalClient.Calls[0].Arguments[4].(workflows.ReviewSignal)
	assert.Equal(t, "alex@example.com", sentSignal.Reviewer, "signal must carry the authenticated reviewer")
	assert.Equal(t, "looks right", sentSignal.Comment)
}

// TestDecisionWorkflowIDFallback tests that a case without a stored
// workflow id falls back to the deterministic id.
func TestDecisionWorkflowIDFallback(t *testing.T) {
	dbClient, sqlMock := newTestDB(t)
	caseID := uuid.New()
	expectCaseRow(sqlMock, caseID, "pending_review", `{}`)

	temporalClient := &mocks.Client{}
	temporalClient.On("SignalWorkflow", mock.Anything, workflows.CaseWorkflowID(caseID), "", workflows.ReviewSignalName(caseID), mock.Anything).
		Return(nil).Once()

	h := NewReviewHandler(temporalClient, dbClient, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.handleDecision(rec, decisionRequest(t, map[string]string{
		"case_id":  caseID.String(),
		"decision": "rejected",
	}, reviewerClaims()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	temporalClient.AssertExpectations(t)
}

// TestDecisionCaseNotPending tests that decisions on closed cases are
// rejected with a conflict.
func TestDecisionCaseNotPending(t *testing.T) {
	dbClient, sqlMock := newTestDB(t)
	caseID := uuid.New()
	expectCaseRow(sqlMock, caseID, "done", `{}`)

	h := NewReviewHandler(&mocks.Client{}, dbClient, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.handleDecision(rec, decisionRequest(t, map[string]string{
		"case_id":  caseID.String(),
		"decision": "approved",
	}, reviewerClaims()))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// TestDecisionCaseNotFound tests the 404 path.
func TestDecisionCaseNotFound(t *testing.T) {
	dbClient, sqlMock := newTestDB(t)
	caseID := uuid.New()
	sqlMock.ExpectQuery(`SELECT \* FROM cases WHERE id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows(caseColumns()))

	h := NewReviewHandler(&mocks.Client{}, dbClient, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.handleDecision(rec, decisionRequest(t, map[string]string{
		"case_id":  caseID.String(),
		"decision": "approved",
	}, reviewerClaims()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestDecisionValidation tests malformed payloads.
func TestDecisionValidation(t *testing.T) {
	dbClient, _ := newTestDB(t)
	h := NewReviewHandler(&mocks.Client{}, dbClient, zaptest.NewLogger(t))

	tests := []struct {
		name string
		body any
		want int
	}{
		{"broken JSON", `{"case_id":`, http.StatusBadRequest},
		{"unknown field", map[string]string{"case_id": uuid.NewString(), "decision": "approved", "extra": "x"}, http.StatusBadRequest},
		{"non-uuid case id", map[string]string{"case_id": "case-42", "decision": "approved"}, http.StatusBadRequest},
		{"unknown decision", map[string]string{"case_id": uuid.NewString(), "decision": "maybe"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.handleDecision(rec, decisionRequest(t, tt.body, reviewerClaims()))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

// TestDecisionRequiresClaims tests that a request without reviewer
// claims in context is refused.
func TestDecisionRequiresClaims(t *testing.T) {
	dbClient, _ := newTestDB(t)
	h := NewReviewHandler(&mocks.Client{}, dbClient, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.handleDecision(rec, decisionRequest(t, map[string]string{
		"case_id":  uuid.NewString(),
		"decision": "approved",
	}, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestDecisionSignalFailure tests that an unreachable Temporal frontend
// surfaces as a bad gateway, not a success.
func TestDecisionSignalFailure(t *testing.T) {
	dbClient, sqlMock := newTestDB(t)
	caseID := uuid.New()
	expectCaseRow(sqlMock, caseID, "pending_review", `{}`)

	temporalClient := &mocks.Client{}
	temporalClient.On("SignalWorkflow", mock.Anything, mock.Anything, "", mock.Anything, mock.Anything).
		Return(fmt.Errorf("frontend unavailable")).Once()

	h := NewReviewHandler(temporalClient, dbClient, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.handleDecision(rec, decisionRequest(t, map[string]string{
		"case_id":  caseID.String(),
		"decision": "approved",
	}, reviewerClaims()))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// TestCaseStatus tests the reviewer case view, including the workflow
// state lookup.
func TestCaseStatus(t *testing.T) {
	dbClient, sqlMock := newTestDB(t)
	caseID := uuid.New()
	workflowID := workflows.CaseWorkflowID(caseID)
	now := time.Now().UTC()

	stage := "await_review"
	summary := "Meter reading for contract ******45"
	sqlMock.ExpectQuery(`SELECT \* FROM cases WHERE id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows(caseColumns()).
			AddRow(caseID, "kunde@example.com", "Zählerstand", "pending_review", &stage, &summary,
				[]byte(fmt.Sprintf(`{"workflow_id": %q}`, workflowID)), now, now, nil))
	sqlMock.ExpectQuery(`SELECT \* FROM actions WHERE case_id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_id", "action_type", "status", "source_intent", "entities", "result", "created_at", "updated_at"}).
			AddRow(uuid.New(), caseID, "submit_meter_reading", "planned", "MeterReadingSubmission", []byte(`{}`), []byte(`{}`), now, now))

	temporalClient := &mocks.Client{}
	temporalClient.On("DescribeWorkflowExecution", mock.Anything, workflowID, "").
		Return(&workflowservice.DescribeWorkflowExecutionResponse{
			WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
				Status: enums.WORKFLOW_EXECUTION_STATUS_RUNNING,
			},
		}, nil).Once()

	h := NewReviewHandler(temporalClient, dbClient, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cases/"+caseID.String()+"/status", nil)
	h.handleCaseStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp caseStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, caseID.String(), resp.CaseID)
	assert.Equal(t, "pending_review", resp.Status)
	assert.Equal(t, "await_review", resp.Stage)
	assert.Equal(t, summary, resp.Summary)
	assert.Equal(t, "running", resp.WorkflowState)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "submit_meter_reading", resp.Actions[0]["action_type"])
	temporalClient.AssertExpectations(t)
}

// TestCaseStatusDescribeFailure tests that a Temporal lookup error
// leaves the workflow state empty instead of failing the request.
func TestCaseStatusDescribeFailure(t *testing.T) {
	dbClient, sqlMock := newTestDB(t)
	caseID := uuid.New()
	expectCaseRow(sqlMock, caseID, "done", fmt.Sprintf(`{"workflow_id": %q}`, "case-gone"))
	sqlMock.ExpectQuery(`SELECT \* FROM actions WHERE case_id = \$1`).
		WithArgs(caseID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_id", "action_type", "status", "source_intent", "entities", "result", "created_at", "updated_at"}))

	temporalClient := &mocks.Client{}
	temporalClient.On("DescribeWorkflowExecution", mock.Anything, "case-gone", "").
		Return(nil, fmt.Errorf("not found")).Once()

	h := NewReviewHandler(temporalClient, dbClient, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.handleCaseStatus(rec, httptest.NewRequest(http.MethodGet, "/cases/"+caseID.String()+"/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp caseStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.WorkflowState)
}

// TestCaseStatusBadPaths tests path and method validation.
func TestCaseStatusBadPaths(t *testing.T) {
	dbClient, _ := newTestDB(t)
	h := NewReviewHandler(&mocks.Client{}, dbClient, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.handleCaseStatus(rec, httptest.NewRequest(http.MethodGet, "/cases/not-a-uuid/status", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.handleCaseStatus(rec, httptest.NewRequest(http.MethodGet, "/cases/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.handleCaseStatus(rec, httptest.NewRequest(http.MethodPost, "/cases/"+uuid.NewString()+"/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
