package workflows

import (
	"github.com/google/uuid"

	"github.com/helioenergie/caseflow/internal/models"
)

// TaskQueue is the worker queue all case workflows and activities use.
const TaskQueue = "caseflow-cases"

// CaseInput starts one case workflow run for an inbound mail.
type CaseInput struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// Trigger names what started the run (imap, api, replay).
	Trigger string `json:"trigger"`
}

// CaseResult is the final record of one run.
type CaseResult struct {
	CaseID  uuid.UUID           `json:"case_id"`
	Status  models.CaseStatus   `json:"status"`
	Stage   string              `json:"stage,omitempty"`
	Actions []models.ActionSpec `json:"actions,omitempty"`
	Errors  []models.StepError  `json:"errors,omitempty"`
}

// ReviewSignal is the payload reviewers send through the review API.
type ReviewSignal struct {
	Decision models.ReviewDecision `json:"decision"`
	Reviewer string                `json:"reviewer"`
	Comment  string                `json:"comment,omitempty"`
}

// ReviewSignalName returns the per-case signal channel name.
func ReviewSignalName(caseID uuid.UUID) string {
	return "case-review-" + caseID.String()
}

// CaseWorkflowID returns the deterministic workflow id for a case so the
// review API can signal a run knowing only the case id.
func CaseWorkflowID(caseID uuid.UUID) string {
	return "case-" + caseID.String()
}
