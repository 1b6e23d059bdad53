package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

// TestApplyScalarOverwrite tests that scalar fields replace on Apply
func TestApplyScalarOverwrite(t *testing.T) {
	rec := CaseRecord{Case: CaseSnapshot{Status: CaseStatusNew}}

	updated := rec.Apply(Update{Case: &CaseSnapshot{Status: CaseStatusWaitingAuth}})

	assert.Equal(t, CaseStatusWaitingAuth, updated.Case.Status)
	assert.Equal(t, CaseStatusNew, rec.Case.Status, "original record must be untouched")
}

// TestApplyAccumulatorsAppend tests that Actions, Drafts and Errors append
func TestApplyAccumulatorsAppend(t *testing.T) {
	rec := CaseRecord{
		Actions: []ActionSpec{{ActionType: "submit_meter_reading", Status: ActionStatusPlanned}},
		Errors:  []StepError{{Stage: "extract", Error: "slow"}},
	}

	updated := rec.Apply(Update{
		Actions: []ActionSpec{{ActionType: "update_personal_data", Status: ActionStatusBlocked}},
		Drafts:  []DraftRef{{ID: uuid.New(), Type: DraftTypePublicReply}},
		Errors:  []StepError{{Stage: "plan", Error: "boom"}},
	})

	assert.Len(t, updated.Actions, 2)
	assert.Equal(t, "submit_meter_reading", updated.Actions[0].ActionType)
	assert.Equal(t, "update_personal_data", updated.Actions[1].ActionType)
	assert.Len(t, updated.Drafts, 1)
	assert.Len(t, updated.Errors, 2)

	// The source record keeps its own slices.
	assert.Len(t, rec.Actions, 1)
	assert.Len(t, rec.Errors, 1)
}

// TestApplyDoesNotShareBackingArrays tests that sibling updates cannot
// clobber each other through a shared slice
func TestApplyDoesNotShareBackingArrays(t *testing.T) {
	base := CaseRecord{Actions: []ActionSpec{{ActionType: "a"}}}

	left := base.Apply(Update{Actions: []ActionSpec{{ActionType: "left"}}})
	right := base.Apply(Update{Actions: []ActionSpec{{ActionType: "right"}}})

	assert.Equal(t, "left", left.Actions[1].ActionType)
	assert.Equal(t, "right", right.Actions[1].ActionType)
}

// TestJoinBarrier tests the at-most-once join contract
func TestJoinBarrier(t *testing.T) {
	rec := CaseRecord{}

	assert.False(t, rec.Join(), "neither branch done")

	rec = rec.Apply(Update{AuthDone: boolPtr(true)})
	assert.False(t, rec.Join(), "only one branch done")

	rec = rec.Apply(Update{NonAuthDone: boolPtr(true)})
	assert.True(t, rec.Join(), "both branches done, first arrival wins")
	assert.False(t, rec.Join(), "second arrival is a no-op")
	assert.False(t, rec.Join())
}

// TestRecordError tests the error accumulation helper
func TestRecordError(t *testing.T) {
	rec := CaseRecord{}
	rec = rec.RecordError("auth", "records store unavailable")
	rec = rec.RecordError("send", "smtp refused")

	assert.Len(t, rec.Errors, 2)
	assert.Equal(t, "auth", rec.Errors[0].Stage)
	assert.Equal(t, "smtp refused", rec.Errors[1].Error)
}

// TestEntityString tests empty-marker handling on entity lookups
func TestEntityString(t *testing.T) {
	e := Entities{
		"contract_number": " AB 123 ",
		"postal_code":     "null",
		"reading":         float64(12345),
		"empty_obj":       map[string]interface{}{},
		"ratio":           1.5,
	}

	assert.Equal(t, "AB 123", e.EntityString("contract_number"))
	assert.Equal(t, "", e.EntityString("postal_code"), "literal null counts as absent")
	assert.Equal(t, "", e.EntityString("missing"))
	assert.Equal(t, "", e.EntityString("empty_obj"))
	assert.Equal(t, "12345", e.EntityString("reading"), "integral floats print without exponent")
	assert.Equal(t, "1.5", e.EntityString("ratio"))
}

func TestIsEmptyValue(t *testing.T) {
	assert.True(t, IsEmptyValue(nil))
	assert.True(t, IsEmptyValue(""))
	assert.True(t, IsEmptyValue("  "))
	assert.True(t, IsEmptyValue("null"))
	assert.True(t, IsEmptyValue(map[string]interface{}{}))
	assert.True(t, IsEmptyValue([]interface{}{}))
	assert.False(t, IsEmptyValue("x"))
	assert.False(t, IsEmptyValue(float64(0)), "numeric zero is a real value")
	assert.False(t, IsEmptyValue(false))
}
