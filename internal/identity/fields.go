package identity

import (
	"sort"

	"github.com/helioenergie/caseflow/internal/models"
)

// MaxAuthAttempts is the verification mismatch ceiling; the third
// mismatch moves the session to failed permanently.
const MaxAuthAttempts = 3

// DefaultRequiredFields is the minimal identity check applied when no
// intent-specific table matches.
var DefaultRequiredFields = []string{"contract_number", "postal_code"}

// requiredFieldsByIntent maps intent names to the identity fields their
// verification requires.
var requiredFieldsByIntent = map[string][]string{
	"MeterReadingSubmission": {"contract_number", "postal_code"},
	"ChangeAddress":          {"contract_number", "postal_code", "birthday"},
	"BankDetailsChange":      {"contract_number", "postal_code", "birthday"},
}

// IdentityKeys is the whitelist of entity keys accepted as identity
// material. Arbitrary extracted keys never become verification input.
var IdentityKeys = map[string]struct{}{
	"contract_number": {},
	"postal_code":     {},
	"birthday":        {},
}

// DeriveRequiredFields computes the union of per-intent requirement
// tables for the given auth intents, falling back to the default pair
// when nothing matches. Order is stable: the default fields first, then
// birthday, then anything a future table adds.
func DeriveRequiredFields(authIntents []models.Intent) []string {
	required := make(map[string]struct{})
	for _, it := range authIntents {
		if it.Name == "" {
			continue
		}
		for _, f := range requiredFieldsByIntent[it.Name] {
			required[f] = struct{}{}
		}
	}
	if len(required) == 0 {
		for _, f := range DefaultRequiredFields {
			required[f] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(required))
	for _, f := range DefaultRequiredFields {
		if _, ok := required[f]; ok {
			ordered = append(ordered, f)
			delete(required, f)
		}
	}
	if _, ok := required["birthday"]; ok {
		ordered = append(ordered, "birthday")
		delete(required, "birthday")
	}
	rest := make([]string, 0, len(required))
	for f := range required {
		rest = append(rest, f)
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}
