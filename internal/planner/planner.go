// Package planner turns non-blocked intents into concrete backend action
// specs, gated by confidence and entity completeness. It has no auth
// awareness of its own: auth gating happens upstream by only handing it
// the auth intent list once verification succeeded.
package planner

import (
	"github.com/helioenergie/caseflow/internal/models"
)

// MinConfidence is the safety gate below which an intent's action is
// blocked rather than planned.
const MinConfidence = 0.60

// intentToAction maps intent names to backend action types. Intents with
// no mapping (pure information requests) never produce an action row.
var intentToAction = map[string]string{
	"MeterReadingSubmission": "submit_meter_reading",
	"PersonalDataChange":     "update_personal_data",
	"ContractIssue":          "handle_contract_issue",
}

// actionRequiredEntities declares the entities an action type needs
// before it can be planned.
var actionRequiredEntities = map[string][]string{
	"submit_meter_reading": {"meter_reading_value"},
	"update_personal_data": {},
	"handle_contract_issue": {},
}

// Plan computes action specs for the given intents. Pure function: no
// I/O, deterministic output order follows intent order.
func Plan(intents []models.Intent, entities models.Entities, minConfidence float64) []models.ActionSpec {
	if minConfidence <= 0 {
		minConfidence = MinConfidence
	}

	var specs []models.ActionSpec
	for _, it := range intents {
		actionType, ok := intentToAction[it.Name]
		if !ok {
			continue
		}

		if it.Confidence < minConfidence {
			specs = append(specs, models.ActionSpec{
				ActionType: actionType,
				Status:     models.ActionStatusBlocked,
				Result: map[string]interface{}{
					"blocked_reason": "low_confidence_intent",
					"intent_name":    it.Name,
					"confidence":     it.Confidence,
				},
			})
			continue
		}

		required := actionRequiredEntities[actionType]
		var missing []string
		for _, k := range required {
			if entities.EntityString(k) == "" {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			specs = append(specs, models.ActionSpec{
				ActionType: actionType,
				Status:     models.ActionStatusBlocked,
				Result: map[string]interface{}{
					"blocked_reason": "missing_entity",
					"missing":        missing,
					"intent_name":    it.Name,
					"confidence":     it.Confidence,
				},
			})
			continue
		}

		snapshot := make(map[string]interface{}, len(required))
		for _, k := range required {
			snapshot[k] = entities.EntityString(k)
		}
		specs = append(specs, models.ActionSpec{
			ActionType: actionType,
			Status:     models.ActionStatusPlanned,
			Result: map[string]interface{}{
				"intent_name":       it.Name,
				"confidence":        it.Confidence,
				"entities_snapshot": snapshot,
			},
		})
	}
	return specs
}
