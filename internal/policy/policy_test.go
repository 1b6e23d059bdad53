package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helioenergie/caseflow/internal/models"
)

// TestSplitSensitiveOverride tests that the server-side sensitive set
// overrides the model's requires_auth flag
func TestSplitSensitiveOverride(t *testing.T) {
	intents := []models.Intent{
		{Name: "MeterReadingSubmission", Confidence: 0.9, RequiresAuth: false},
		{Name: "TariffQuestion", Confidence: 0.8, RequiresAuth: false},
	}

	auth, nonAuth, dropped := Split(intents)

	assert.Equal(t, 0, dropped)
	assert.Len(t, auth, 1)
	assert.Equal(t, "MeterReadingSubmission", auth[0].Name)
	assert.True(t, auth[0].RequiresAuth, "flag must be forced on for sensitive intents")
	assert.Len(t, nonAuth, 1)
	assert.Equal(t, "TariffQuestion", nonAuth[0].Name)
}

// TestSplitModelFlagRespected tests that a non-sensitive intent the model
// marks auth-required lands in the auth group
func TestSplitModelFlagRespected(t *testing.T) {
	auth, nonAuth, _ := Split([]models.Intent{
		{Name: "SomethingNew", RequiresAuth: true},
	})

	assert.Len(t, auth, 1)
	assert.Empty(t, nonAuth)
}

// TestSplitDropsUnnamedIntents tests that malformed entries are counted,
// not fatal
func TestSplitDropsUnnamedIntents(t *testing.T) {
	auth, nonAuth, dropped := Split([]models.Intent{
		{Name: "", Confidence: 0.9},
		{Name: "TariffQuestion", Confidence: 0.7},
	})

	assert.Equal(t, 1, dropped)
	assert.Empty(t, auth)
	assert.Len(t, nonAuth, 1)
}

// TestSplitPreservesOrder tests stable ordering within each group
func TestSplitPreservesOrder(t *testing.T) {
	auth, nonAuth, _ := Split([]models.Intent{
		{Name: "ContractIssue"},
		{Name: "TariffQuestion"},
		{Name: "PersonalDataChange"},
		{Name: "GeneralInquiry"},
	})

	assert.Equal(t, []string{"ContractIssue", "PersonalDataChange"}, intentNames(auth))
	assert.Equal(t, []string{"TariffQuestion", "GeneralInquiry"}, intentNames(nonAuth))
}

func TestSplitEmptyInput(t *testing.T) {
	auth, nonAuth, dropped := Split(nil)
	assert.Empty(t, auth)
	assert.Empty(t, nonAuth)
	assert.Zero(t, dropped)
}

func intentNames(intents []models.Intent) []string {
	names := make([]string, 0, len(intents))
	for _, it := range intents {
		names = append(names, it.Name)
	}
	return names
}
