package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the externally visible lifecycle state of a case.
type CaseStatus string

const (
	CaseStatusNew             CaseStatus = "new"
	CaseStatusWaitingAuth     CaseStatus = "waiting_auth"
	CaseStatusPendingReview   CaseStatus = "pending_review"
	CaseStatusWaitingCustomer CaseStatus = "waiting_customer"
	CaseStatusDone            CaseStatus = "done"
	CaseStatusFailed          CaseStatus = "failed"
)

// AuthStatus is the state of the per-case identity verification session.
type AuthStatus string

const (
	AuthStatusMissing AuthStatus = "missing"
	AuthStatusSuccess AuthStatus = "success"
	AuthStatusFailed  AuthStatus = "failed"
)

// ActionStatus tracks a planned backend action through its lifecycle.
type ActionStatus string

const (
	ActionStatusPlanned  ActionStatus = "planned"
	ActionStatusBlocked  ActionStatus = "blocked"
	ActionStatusExecuted ActionStatus = "executed"
)

// DraftType distinguishes the customer-facing reply from the identity request.
type DraftType string

const (
	DraftTypePublicReply DraftType = "public_reply"
	DraftTypeAuthRequest DraftType = "auth_request"
)

// ReviewDecision is the human reviewer's verdict on a draft.
type ReviewDecision string

const (
	ReviewApproved ReviewDecision = "approved"
	ReviewRejected ReviewDecision = "rejected"
)

// Intent is one classified customer goal extracted from a message.
type Intent struct {
	Name         string  `json:"name"`
	Confidence   float64 `json:"confidence"`
	RequiresAuth bool    `json:"requires_auth"`
	Reason       string  `json:"reason,omitempty"`
}

// Entities is the open map of structured values pulled from message text.
// Keys the model invents are tolerated here; identity material is filtered
// through a whitelist before it ever reaches the auth session.
type Entities map[string]interface{}

// StepError records a non-fatal failure attributed to a workflow step.
// Errors are accumulated on the case record so a reviewer can see why a
// case stalled without digging through logs.
type StepError struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// CaseSnapshot mirrors the persisted case row.
type CaseSnapshot struct {
	ID         uuid.UUID              `json:"id"`
	Status     CaseStatus             `json:"status"`
	StatusMeta map[string]interface{} `json:"status_meta"`
	Channel    string                 `json:"channel"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// MessageSnapshot mirrors one persisted email message.
type MessageSnapshot struct {
	ID         uuid.UUID `json:"id"`
	CaseID     uuid.UUID `json:"case_id"`
	Direction  string    `json:"direction"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	FromEmail  string    `json:"from_email"`
	ToEmail    string    `json:"to_email"`
	ReceivedAt time.Time `json:"received_at"`
}

// ExtractionSnapshot mirrors the persisted extraction for one message.
type ExtractionSnapshot struct {
	ID         uuid.UUID `json:"id"`
	CaseID     uuid.UUID `json:"case_id"`
	MessageID  uuid.UUID `json:"message_id"`
	Intents    []Intent  `json:"intents"`
	Entities   Entities  `json:"entities"`
	Confidence float64   `json:"confidence"`
}

// ProvidedField is the stored form of one identity value: a salted hash
// for verification plus a masked rendering for reviewers. Raw values are
// never persisted.
type ProvidedField struct {
	Hash   string `json:"hash"`
	Masked string `json:"masked"`
}

// AuthSnapshot mirrors the per-case auth session row.
type AuthSnapshot struct {
	ID             uuid.UUID                `json:"id"`
	CaseID         uuid.UUID                `json:"case_id"`
	RequiredFields []string                 `json:"required_fields"`
	ProvidedFields map[string]ProvidedField `json:"provided_fields"`
	Status         AuthStatus               `json:"auth_status"`
	Attempts       int                      `json:"attempts"`
}

// ActionSpec is one planned or blocked backend action.
type ActionSpec struct {
	ID         uuid.UUID              `json:"id,omitempty"`
	ActionType string                 `json:"action_type"`
	Status     ActionStatus           `json:"action_status"`
	Result     map[string]interface{} `json:"result,omitempty"`
}

// DraftRef references a draft written during the run.
type DraftRef struct {
	ID   uuid.UUID `json:"id"`
	Type DraftType `json:"draft_type"`
}

// CaseRecord is the shared state threaded through one workflow run. It has
// value semantics: steps never mutate a record in place, they return an
// Update that the workflow applies through Apply.
type CaseRecord struct {
	Case       CaseSnapshot        `json:"case"`
	Message    MessageSnapshot     `json:"message"`
	Extraction *ExtractionSnapshot `json:"extraction,omitempty"`

	AuthIntents    []Intent `json:"auth_intents,omitempty"`
	NonAuthIntents []Intent `json:"non_auth_intents,omitempty"`

	Auth *AuthSnapshot `json:"auth,omitempty"`

	Actions []ActionSpec `json:"actions,omitempty"`
	Drafts  []DraftRef   `json:"drafts,omitempty"`
	Errors  []StepError  `json:"errors,omitempty"`

	// Join barrier flags. Each branch sets its own done flag exactly once;
	// JoinedOnce guards the single transition into review.
	AuthDone    bool `json:"auth_done"`
	NonAuthDone bool `json:"non_auth_done"`
	JoinedOnce  bool `json:"joined_once"`
}

// Update is the partial update a step returns. Scalar fields replace the
// record's value when non-nil; accumulator fields (Actions, Drafts,
// Errors) are appended so sibling branches cannot erase each other's
// contributions.
type Update struct {
	Case       *CaseSnapshot
	Message    *MessageSnapshot
	Extraction *ExtractionSnapshot

	AuthIntents    []Intent
	NonAuthIntents []Intent

	Auth *AuthSnapshot

	Actions []ActionSpec
	Drafts  []DraftRef
	Errors  []StepError

	AuthDone    *bool
	NonAuthDone *bool
}

// Apply merges an update into a copy of the record and returns the copy.
// Overwrite for scalars, append for accumulators; this asymmetry is what
// lets the two intent branches share one record without clobbering each
// other.
func (r CaseRecord) Apply(u Update) CaseRecord {
	if u.Case != nil {
		r.Case = *u.Case
	}
	if u.Message != nil {
		r.Message = *u.Message
	}
	if u.Extraction != nil {
		r.Extraction = u.Extraction
	}
	if u.AuthIntents != nil {
		r.AuthIntents = u.AuthIntents
	}
	if u.NonAuthIntents != nil {
		r.NonAuthIntents = u.NonAuthIntents
	}
	if u.Auth != nil {
		r.Auth = u.Auth
	}
	if len(u.Actions) > 0 {
		r.Actions = append(append([]ActionSpec{}, r.Actions...), u.Actions...)
	}
	if len(u.Drafts) > 0 {
		r.Drafts = append(append([]DraftRef{}, r.Drafts...), u.Drafts...)
	}
	if len(u.Errors) > 0 {
		r.Errors = append(append([]StepError{}, r.Errors...), u.Errors...)
	}
	if u.AuthDone != nil {
		r.AuthDone = *u.AuthDone
	}
	if u.NonAuthDone != nil {
		r.NonAuthDone = *u.NonAuthDone
	}
	return r
}

// Join implements the barrier contract: it reports "ready" at most once
// per record, and only after both branch flags are set. Repeated arrivals
// after the first ready are no-ops.
func (r *CaseRecord) Join() bool {
	if !r.AuthDone || !r.NonAuthDone {
		return false
	}
	if r.JoinedOnce {
		return false
	}
	r.JoinedOnce = true
	return true
}

// RecordError appends a step error; helper for the common failure path.
func (r CaseRecord) RecordError(stage, msg string) CaseRecord {
	return r.Apply(Update{Errors: []StepError{{Stage: stage, Error: msg}}})
}

// EntityString returns the entity value as a trimmed string, or "" when
// the value is absent or one of the model's empty markers.
func (e Entities) EntityString(key string) string {
	v, ok := e[key]
	if !ok {
		return ""
	}
	return NormalizeValue(v)
}
