// Package policy classifies extracted intents into the auth-required and
// non-auth groups that drive the two parallel workflow branches.
package policy

import (
	"github.com/helioenergie/caseflow/internal/models"
)

// SensitiveIntents is the server-side override set: intents named here
// always require identity verification, whatever the model claimed.
var SensitiveIntents = map[string]struct{}{
	"MeterReadingSubmission": {},
	"MeterReadingCorrection": {},
	"PersonalDataChange":     {},
	"ContractIssue":          {},
}

// Split separates intents into auth-required and non-auth groups,
// preserving the original order within each group. An intent requires
// auth when the model says so OR its name is in the sensitive override
// set; the model alone is never trusted for sensitive classes.
//
// Malformed entries (empty name) are dropped and counted rather than
// aborting the case: extraction noise must not kill the run.
func Split(intents []models.Intent) (auth, nonAuth []models.Intent, dropped int) {
	for _, it := range intents {
		if it.Name == "" {
			dropped++
			continue
		}
		if RequiresAuth(it) {
			it.RequiresAuth = true
			auth = append(auth, it)
		} else {
			nonAuth = append(nonAuth, it)
		}
	}
	return auth, nonAuth, dropped
}

// RequiresAuth reports the final auth requirement for a single intent.
func RequiresAuth(it models.Intent) bool {
	if it.RequiresAuth {
		return true
	}
	_, sensitive := SensitiveIntents[it.Name]
	return sensitive
}
