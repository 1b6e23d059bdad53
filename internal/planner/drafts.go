package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/helioenergie/caseflow/internal/models"
)

var fieldLabels = map[string]string{
	"contract_number": "your contract number",
	"postal_code":     "your postal code",
	"birthday":        "your date of birth",
	"full_name":       "your full name",
	"address":         "your address",
}

func prettyField(f string) string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return f
}

// BuildCustomerReply produces the customer-facing reply text block for
// one branch's planning outcome. Template-based for now.
func BuildCustomerReply(topicKeywords []string, specs []models.ActionSpec) string {
	lines := []string{"Hello,", ""}

	if len(topicKeywords) > 0 {
		lines = append(lines,
			fmt.Sprintf("I understood your request about: %s.", strings.Join(topicKeywords, ", ")),
			"")
	}

	if len(specs) == 0 {
		lines = append(lines,
			"Thanks for your message.",
			"We are reviewing it and will respond shortly.",
			"",
			"Kind regards")
		return strings.Join(lines, "\n")
	}

	var planned, blocked []models.ActionSpec
	for _, s := range specs {
		if s.Status == models.ActionStatusPlanned {
			planned = append(planned, s)
		} else if s.Status == models.ActionStatusBlocked {
			blocked = append(blocked, s)
		}
	}

	if len(planned) > 0 {
		lines = append(lines, "We can proceed with the following:")
		for _, a := range planned {
			lines = append(lines, "- "+a.ActionType)
		}
		lines = append(lines, "")
	}

	if len(blocked) > 0 {
		lines = append(lines, "We still need something before we can continue:")
		for _, a := range blocked {
			reason, _ := a.Result["blocked_reason"].(string)
			switch reason {
			case "missing_entity":
				lines = append(lines, fmt.Sprintf("- %s: missing %s", a.ActionType, joinMissing(a.Result["missing"])))
			case "low_confidence_intent":
				lines = append(lines, fmt.Sprintf("- %s: please confirm your request (unclear message)", a.ActionType))
			default:
				lines = append(lines, fmt.Sprintf("- %s: %s", a.ActionType, reason))
			}
		}
		lines = append(lines, "")
	}

	lines = append(lines, "Kind regards")
	return strings.Join(lines, "\n")
}

// BuildInternalSummary renders the reviewer-facing summary of one
// planning pass.
func BuildInternalSummary(intents []models.Intent, topicKeywords []string, specs []models.ActionSpec, authStatus string) string {
	names := make([]string, 0, len(intents))
	for _, it := range intents {
		names = append(names, it.Name)
	}
	compact := make([]string, 0, len(specs))
	for _, s := range specs {
		reason, _ := s.Result["blocked_reason"].(string)
		if reason != "" {
			compact = append(compact, fmt.Sprintf("%s=%s(%s)", s.ActionType, s.Status, reason))
		} else {
			compact = append(compact, fmt.Sprintf("%s=%s", s.ActionType, s.Status))
		}
	}
	return fmt.Sprintf("Auth status: %s\nIntents: [%s]\nTopics: [%s]\nActions: [%s]",
		authStatus,
		strings.Join(names, ", "),
		strings.Join(topicKeywords, ", "),
		strings.Join(compact, ", "))
}

// BuildAuthRequestReply renders the identity-request email asking the
// customer for the still-missing fields, with the case id instruction so
// replies route back to the same case.
func BuildAuthRequestReply(caseID string, missingFields []string) string {
	bullets := make([]string, 0, len(missingFields))
	for _, f := range missingFields {
		bullets = append(bullets, "- "+prettyField(f))
	}
	return strings.Join([]string{
		"Hello,",
		"",
		fmt.Sprintf("Your case ID: %s", caseID),
		"",
		"To process your request, we still need the following information to verify your identity:",
		strings.Join(bullets, "\n"),
		"",
		"Please reply to this email and keep your case ID in the reply or in the email subject.",
		"",
		"Thank you and kind regards",
	}, "\n")
}

// BuildAuthRequestSummary renders the internal summary for the identity
// request draft.
func BuildAuthRequestSummary(required, missing []string, provided map[string]models.ProvidedField) string {
	providedKeys := make([]string, 0, len(provided))
	for k := range provided {
		providedKeys = append(providedKeys, k)
	}
	sort.Strings(providedKeys)
	return fmt.Sprintf(
		"Auth request draft created.\nRequired: %s\nMissing: %s\nProvided (keys): %s\nNext step: when the customer responds, extraction runs again and the auth session is updated.",
		orDash(required), orDash(missing), orDash(providedKeys))
}

// BuildAuthMismatchReply renders the identity-request email for a
// verification mismatch: all required fields were provided, but they did
// not match the records. The customer is asked to re-send the full set.
func BuildAuthMismatchReply(caseID string, requiredFields []string) string {
	bullets := make([]string, 0, len(requiredFields))
	for _, f := range requiredFields {
		bullets = append(bullets, "- "+prettyField(f))
	}
	return strings.Join([]string{
		"Hello,",
		"",
		fmt.Sprintf("Your case ID: %s", caseID),
		"",
		"The details you provided do not match our records. To verify your identity, please check and re-send the following information:",
		strings.Join(bullets, "\n"),
		"",
		"Please reply to this email and keep your case ID in the reply or in the email subject.",
		"",
		"Thank you and kind regards",
	}, "\n")
}

// BuildAuthMismatchSummary renders the internal summary for a mismatch
// identity request.
func BuildAuthMismatchSummary(required []string, provided map[string]models.ProvidedField, attempts int) string {
	providedKeys := make([]string, 0, len(provided))
	for k := range provided {
		providedKeys = append(providedKeys, k)
	}
	sort.Strings(providedKeys)
	return fmt.Sprintf(
		"Auth mismatch: provided details did not match our records (attempt %d).\nRequired: %s\nProvided (keys): %s\nNext step: the customer was asked to re-send the required fields.",
		attempts, orDash(required), orDash(providedKeys))
}

func orDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func joinMissing(v interface{}) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ", ")
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			parts = append(parts, fmt.Sprintf("%v", x))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// TopicKeywords extracts the topic_keywords entity as a string slice.
func TopicKeywords(entities models.Entities) []string {
	raw, ok := entities["topic_keywords"]
	if !ok {
		return nil
	}
	switch t := raw.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
