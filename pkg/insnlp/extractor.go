// Package insnlp extracts insurance line-of-business and US state mentions
// from unstructured conversation text using keyword tables. No external
// dependencies.
package insnlp

import (
	"strings"

	"github.com/policywise/policywise/engine/domain"
)

// lineKeywords maps trigger words/phrases to a canonical line of business.
// Multi-word phrases are checked before single words.
var lineKeywords = map[string]domain.InsuranceLine{
	"car insurance":      domain.LineAuto,
	"auto insurance":     domain.LineAuto,
	"vehicle insurance":  domain.LineAuto,
	"car":                domain.LineAuto,
	"auto":               domain.LineAuto,
	"vehicle":            domain.LineAuto,
	"collision":          domain.LineAuto,
	"comprehensive":      domain.LineAuto,
	"liability coverage": domain.LineAuto,

	"homeowners":     domain.LineHome,
	"homeowner":      domain.LineHome,
	"home insurance": domain.LineHome,
	"house":          domain.LineHome,
	"dwelling":       domain.LineHome,

	"renters":  domain.LineRenters,
	"renter":   domain.LineRenters,
	"landlord": domain.LineRenters,
	"apartment": domain.LineRenters,

	"condo":       domain.LineCondo,
	"condominium": domain.LineCondo,

	"life insurance": domain.LineLife,
	"term life":      domain.LineLife,
	"whole life":     domain.LineLife,
	"beneficiary":    domain.LineLife,

	"umbrella": domain.LineUmbrella,

	"flood":      domain.LineFlood,
	"floodplain": domain.LineFlood,
	"fema":       domain.LineFlood,
}

// multiWordLines lists phrases to check before tokenizing, longest first.
var multiWordLines = []string{
	"liability coverage",
	"vehicle insurance",
	"auto insurance",
	"home insurance",
	"life insurance",
	"car insurance",
	"whole life",
	"term life",
}

// ExtractLine finds a line-of-business mention in text.
func ExtractLine(text string) (domain.InsuranceLine, bool) {
	lower := strings.ToLower(text)

	for _, phrase := range multiWordLines {
		if strings.Contains(lower, phrase) {
			return lineKeywords[phrase], true
		}
	}

	for _, tok := range tokenize(lower) {
		if line, ok := lineKeywords[tok]; ok {
			return line, true
		}
	}
	return "", false
}

// ExtractState finds a US state mention (postal code or full name) in text.
// Two-letter codes are only recognised in upper case to avoid matching
// common words ("hi", "in", "me", "or").
func ExtractState(text string) (string, bool) {
	for _, tok := range strings.Fields(text) {
		trimmed := strings.Trim(tok, ".,!?;:'\"()")
		if len(trimmed) == 2 && trimmed == strings.ToUpper(trimmed) {
			if _, ok := domain.USStates[trimmed]; ok {
				return trimmed, true
			}
		}
	}

	lower := strings.ToLower(text)
	for code, name := range domain.USStates {
		if strings.Contains(lower, strings.ToLower(name)) {
			return code, true
		}
	}
	return "", false
}

// LineFromConversation scans turns newest-first for a line-of-business
// mention; the shopper's most recent intent wins.
func LineFromConversation(c domain.ConversationContext) (domain.InsuranceLine, bool) {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Role != domain.RoleUser {
			continue
		}
		if line, ok := ExtractLine(c.Turns[i].Content); ok {
			return line, true
		}
	}
	return "", false
}

// StateFromConversation scans turns newest-first for a state mention.
func StateFromConversation(c domain.ConversationContext) (string, bool) {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Role != domain.RoleUser {
			continue
		}
		if st, ok := ExtractState(c.Turns[i].Content); ok {
			return st, true
		}
	}
	return "", false
}

func tokenize(lower string) []string {
	fields := strings.Fields(lower)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.Trim(f, ".,!?;:'\"()"))
	}
	return out
}
