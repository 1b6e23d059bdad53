package activities

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/identity"
	"github.com/helioenergie/caseflow/internal/metrics"
	"github.com/helioenergie/caseflow/internal/models"
)

// AuthEvalInput is one pass through the verification state machine.
type AuthEvalInput struct {
	CaseID      uuid.UUID              `json:"case_id"`
	CaseMeta    map[string]interface{} `json:"case_meta"`
	Entities    models.Entities        `json:"entities"`
	AuthIntents []models.Intent        `json:"auth_intents"`
}

// AuthEvalResult carries the persisted outcome back to the workflow.
type AuthEvalResult struct {
	Status         models.AuthStatus `json:"status"`
	ErrorType      string            `json:"error_type"`
	RequiredFields []string          `json:"required_fields"`
	MissingFields  []string          `json:"missing_fields"`
	Attempts       int               `json:"attempts"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Auth           models.AuthSnapshot `json:"auth"`
}

// EvaluateAuthSession loads the stored auth session, runs one evaluation
// against the contract records and persists the new state. The workflow
// runs this at most once per case run, which keeps the attempt counter's
// read-modify-write safe.
func (a *Activities) EvaluateAuthSession(ctx context.Context, in AuthEvalInput) (AuthEvalResult, error) {
	var existing *models.AuthSnapshot
	attempts := 0

	row, err := a.db.GetAuthSession(ctx, in.CaseID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return AuthEvalResult{}, err
	}
	if err == nil {
		existing = authSnapshot(row)
		attempts = row.Attempts
	}

	verify := func(contractHash, postalHash, birthdayHash string) (string, error) {
		return a.db.VerifyIdentity(ctx, contractHash, postalHash, birthdayHash)
	}

	outcome, err := identity.Evaluate(identity.Input{
		Existing:    existing,
		CaseMeta:    in.CaseMeta,
		Entities:    in.Entities,
		AuthIntents: in.AuthIntents,
		Attempts:    attempts,
		Salt:        a.cfg.HashSalt,
	}, verify)
	if err != nil {
		return AuthEvalResult{}, err
	}

	provided := db.JSONB{}
	for k, v := range outcome.Provided {
		provided[k] = map[string]interface{}{"hash": v.Hash, "masked": v.Masked}
	}
	if outcome.CustomerID != "" {
		provided["verified_customer_id"] = outcome.CustomerID
	}

	var customerID *string
	if outcome.CustomerID != "" {
		id := outcome.CustomerID
		customerID = &id
	}

	if err := a.db.UpsertAuthSession(ctx, &db.AuthSessionRow{
		CaseID:         in.CaseID,
		Status:         string(outcome.Status),
		ErrorType:      string(outcome.ErrorType),
		RequiredFields: pq.StringArray(outcome.RequiredFields),
		MissingFields:  pq.StringArray(outcome.MissingFields),
		Provided:       provided,
		Attempts:       outcome.Attempts,
		CustomerID:     customerID,
	}); err != nil {
		return AuthEvalResult{}, err
	}

	// The auth_attempts metadata entry mirrors auth_sessions.attempts so
	// the reviewer case view shows the counter without a join. The
	// workflow runs at most one evaluation per case at a time, so the
	// read-modify-write does not race.
	caseRow, err := a.db.GetCase(ctx, in.CaseID)
	if err != nil {
		return AuthEvalResult{}, err
	}
	meta := caseRow.Metadata
	if meta == nil {
		meta = db.JSONB{}
	}
	meta["auth_attempts"] = outcome.Attempts
	if err := a.db.UpdateCaseMetadata(ctx, in.CaseID, meta); err != nil {
		return AuthEvalResult{}, err
	}

	metrics.RecordAuthOutcome(string(outcome.Status), string(outcome.ErrorType))
	if outcome.Status == models.AuthStatusFailed && outcome.ErrorType == identity.ErrorMismatch {
		metrics.AuthAttemptsExhausted.Inc()
	}

	a.logger.Info("Auth session evaluated",
		zap.String("case_id", in.CaseID.String()),
		zap.String("status", string(outcome.Status)),
		zap.String("error_type", string(outcome.ErrorType)),
		zap.Int("attempts", outcome.Attempts),
	)

	return AuthEvalResult{
		Status:         outcome.Status,
		ErrorType:      string(outcome.ErrorType),
		RequiredFields: outcome.RequiredFields,
		MissingFields:  outcome.MissingFields,
		Attempts:       outcome.Attempts,
		CustomerID:     outcome.CustomerID,
		Auth: models.AuthSnapshot{
			CaseID:         in.CaseID,
			RequiredFields: outcome.RequiredFields,
			ProvidedFields: outcome.Provided,
			Status:         outcome.Status,
			Attempts:       outcome.Attempts,
		},
	}, nil
}

func authSnapshot(row *db.AuthSessionRow) *models.AuthSnapshot {
	provided := make(map[string]models.ProvidedField)
	for k, v := range row.Provided {
		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		hash, _ := entry["hash"].(string)
		masked, _ := entry["masked"].(string)
		if hash == "" {
			continue
		}
		provided[k] = models.ProvidedField{Hash: hash, Masked: masked}
	}
	return &models.AuthSnapshot{
		CaseID:         row.CaseID,
		RequiredFields: []string(row.RequiredFields),
		ProvidedFields: provided,
		Status:         models.AuthStatus(row.Status),
		Attempts:       row.Attempts,
	}
}
