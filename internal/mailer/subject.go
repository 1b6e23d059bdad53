package mailer

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	replyPrefix   = regexp.MustCompile(`(?i)^\s*(re|fw|fwd)\s*:\s*`)
	caseTokenExpr = regexp.MustCompile(`(?i)\[case:\s*([0-9a-f-]{36})\]`)
)

// NormalizeSubject strips reply and forward prefixes, repeatedly, and
// trims whitespace. "Re: Fwd: Meter reading" becomes "Meter reading".
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		next := replyPrefix.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = strings.TrimSpace(next)
	}
	return s
}

// ReplySubject builds the outbound subject for a reply, avoiding stacked
// "Re:" prefixes.
func ReplySubject(subject string) string {
	return "Re: " + NormalizeSubject(subject)
}

// ExtractCaseToken finds a "[CASE: <uuid>]" token in subject or body and
// returns the case id. Returns uuid.Nil and false when absent or invalid.
func ExtractCaseToken(subject, body string) (uuid.UUID, bool) {
	for _, text := range []string{subject, body} {
		m := caseTokenExpr.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		id, err := uuid.Parse(m[1])
		if err != nil {
			continue
		}
		return id, true
	}
	return uuid.Nil, false
}

// CaseToken renders the routing token customers keep in their replies.
func CaseToken(caseID uuid.UUID) string {
	return "[CASE: " + caseID.String() + "]"
}

// SubjectWithCaseToken appends the routing token unless already present.
func SubjectWithCaseToken(subject string, caseID uuid.UUID) string {
	if _, ok := ExtractCaseToken(subject, ""); ok {
		return subject
	}
	return subject + " " + CaseToken(caseID)
}
