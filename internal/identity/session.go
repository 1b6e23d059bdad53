// Package identity implements the per-case identity verification state
// machine: required-field derivation, monotonic accumulation of provided
// values, salted-hash verification against the contract records, and the
// three-attempt ceiling.
package identity

import (
	"github.com/helioenergie/caseflow/internal/models"
)

// ErrorType classifies why an evaluation did not succeed.
type ErrorType string

const (
	ErrorNone     ErrorType = "none"
	ErrorMissing  ErrorType = "missing"
	ErrorMismatch ErrorType = "mismatch"
	ErrorPolicy   ErrorType = "policy_error"
)

// Input carries everything one evaluation needs. Existing may be nil on
// the first auth-required message of a case.
type Input struct {
	Existing       *models.AuthSnapshot
	CaseMeta       map[string]interface{}
	Entities       models.Entities
	AuthIntents    []models.Intent
	Attempts       int
	Salt           string
}

// VerifyFunc checks the hashed identity tuple against the records store.
// Empty hash strings mean the field is not part of this verification.
// Returns the verified customer id, or "" on no match.
type VerifyFunc func(contractHash, postalHash, birthdayHash string) (string, error)

// Outcome is the result of one pass through the state machine.
type Outcome struct {
	Status         models.AuthStatus
	ErrorType      ErrorType
	RequiredFields []string
	MissingFields  []string
	Provided       map[string]models.ProvidedField
	Attempts       int
	CustomerID     string
}

// Evaluate runs one invocation of the auth state machine. It is pure
// apart from the injected records lookup; persisting the outcome is the
// caller's job.
//
// Transitions: missing -> missing while incomplete or mismatched under
// the ceiling, missing -> success on a records match, missing -> failed
// once attempts reach MaxAuthAttempts. success and failed are terminal.
func Evaluate(in Input, verify VerifyFunc) (Outcome, error) {
	required := requiredFields(in)
	if len(required) == 0 {
		// Reaching the auth branch with nothing to verify is a policy
		// error, never an implicit success.
		return Outcome{
			Status:         models.AuthStatusFailed,
			ErrorType:      ErrorPolicy,
			Attempts:       in.Attempts,
			Provided:       existingProvided(in.Existing),
			RequiredFields: nil,
		}, nil
	}

	// Accumulate raw values: previously hashed fields count as present,
	// fresh entity values (whitelisted, non-empty) overlay them.
	raw := make(map[string]string)
	prior := existingProvided(in.Existing)
	for key := range IdentityKeys {
		if v := in.Entities.EntityString(key); v != "" {
			raw[key] = v
		}
	}

	var missing []string
	for _, f := range required {
		if _, fresh := raw[f]; fresh {
			continue
		}
		if _, stored := prior[f]; stored {
			continue
		}
		missing = append(missing, f)
	}

	out := Outcome{
		RequiredFields: required,
		MissingFields:  missing,
		Attempts:       in.Attempts,
		Provided:       mergeProvided(prior, raw, in.Salt),
	}

	if len(missing) > 0 {
		out.Status = models.AuthStatusMissing
		out.ErrorType = ErrorMissing
		return out, nil
	}

	customerID, err := verify(
		fieldHash(raw, prior, "contract_number", in.Salt),
		hashIfRequired(required, raw, prior, "postal_code", in.Salt),
		hashIfRequired(required, raw, prior, "birthday", in.Salt),
	)
	if err != nil {
		return out, err
	}

	if customerID != "" {
		out.Status = models.AuthStatusSuccess
		out.ErrorType = ErrorNone
		out.CustomerID = customerID
		return out, nil
	}

	out.Attempts = in.Attempts + 1
	out.ErrorType = ErrorMismatch
	if out.Attempts >= MaxAuthAttempts {
		out.Status = models.AuthStatusFailed
	} else {
		out.Status = models.AuthStatusMissing
	}
	return out, nil
}

// requiredFields prefers the session's stored list for stability across
// turns, then the case metadata, then the per-intent derivation. With no
// stored list and no auth intents there is nothing to derive from and
// the result is empty, which the caller treats as a policy error.
func requiredFields(in Input) []string {
	if in.Existing != nil && len(in.Existing.RequiredFields) > 0 {
		return in.Existing.RequiredFields
	}
	if rf, ok := in.CaseMeta["auth_required_fields"].([]interface{}); ok && len(rf) > 0 {
		out := make([]string, 0, len(rf))
		for _, v := range rf {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if len(in.AuthIntents) == 0 {
		return nil
	}
	return DeriveRequiredFields(in.AuthIntents)
}

func existingProvided(s *models.AuthSnapshot) map[string]models.ProvidedField {
	if s == nil || s.ProvidedFields == nil {
		return map[string]models.ProvidedField{}
	}
	return s.ProvidedFields
}

// mergeProvided overlays freshly provided values (hashed + masked) on the
// previously stored safe fields. Stored values are never dropped, only
// replaced by newer non-empty submissions for the same key.
func mergeProvided(prior map[string]models.ProvidedField, raw map[string]string, salt string) map[string]models.ProvidedField {
	merged := make(map[string]models.ProvidedField, len(prior)+len(raw))
	for k, v := range prior {
		merged[k] = v
	}
	for k, v := range raw {
		merged[k] = models.ProvidedField{Hash: HashField(v, salt), Masked: MaskValue(v)}
	}
	return merged
}

// fieldHash returns the hash for a field, preferring a fresh raw value
// over the previously stored hash.
func fieldHash(raw map[string]string, prior map[string]models.ProvidedField, key, salt string) string {
	if v, ok := raw[key]; ok {
		return HashField(v, salt)
	}
	if p, ok := prior[key]; ok {
		return p.Hash
	}
	return ""
}

func hashIfRequired(required []string, raw map[string]string, prior map[string]models.ProvidedField, key, salt string) string {
	for _, f := range required {
		if f == key {
			return fieldHash(raw, prior, key, salt)
		}
	}
	return ""
}
