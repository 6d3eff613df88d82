package rules

import (
	"fmt"
	"strings"
)

// KnowledgeBase holds the canonical support facts used both for deterministic
// answers and for the generation prompt. It is read-only after construction,
// so a single value can be shared for the process lifetime.
type KnowledgeBase struct {
	SupportNumber string
	SupportEmail  string
	Hours         string
	HelpCenterURL string
	StatusURL     string
	PricingURL    string
}

// DefaultKnowledgeBase returns the built-in canonical support facts.
func DefaultKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		SupportNumber: "+1-800-555-1212",
		SupportEmail:  "support@example.com",
		Hours:         "Mon-Fri 9am-5pm ET",
		HelpCenterURL: "https://example.com/help",
		StatusURL:     "https://status.example.com",
		PricingURL:    "https://example.com/pricing",
	}
}

// Matcher answers common support questions directly from the knowledge base,
// without any network call.
type Matcher struct {
	kb KnowledgeBase
}

func NewMatcher(kb KnowledgeBase) *Matcher {
	return &Matcher{kb: kb}
}

// Match lower-cases the query and tests an ordered list of keyword
// predicates, returning the canonical answer for the first one that matches.
// The order is significant: the predicates are not mutually exclusive, so a
// query mentioning both "email" and "hours" gets the email answer. A miss
// returns ok=false and the caller falls through to retrieval.
func (m *Matcher) Match(query string) (string, bool) {
	s := strings.ToLower(query)
	switch {
	case containsAny(s, "phone", "contact number", "call"):
		return fmt.Sprintf("You can call us at %s.", m.kb.SupportNumber), true
	case containsAny(s, "email", "support email"):
		return fmt.Sprintf("Support email: %s", m.kb.SupportEmail), true
	case containsAny(s, "hours", "open", "close"):
		return fmt.Sprintf("Support hours: %s", m.kb.Hours), true
	case strings.Contains(s, "pricing"):
		return fmt.Sprintf("Our pricing is available at %s", m.kb.PricingURL), true
	case containsAny(s, "status", "uptime"):
		return fmt.Sprintf("Check system status at %s", m.kb.StatusURL), true
	}
	return "", false
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
