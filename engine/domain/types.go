// Package domain defines core domain types, constants, and validation for
// the Policywise engine. It acts as the validation gate at pipeline entry
// points.
package domain

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationContext carries the conversation history plus any structured
// facts already established about the shopper. It is read-only to the
// retrieval pipeline and lives for a single request.
type ConversationContext struct {
	Turns         []Turn `json:"turns"`
	InsuranceType string `json:"insurance_type,omitempty"`
	State         string `json:"state,omitempty"`
}

// LastUserTurn returns the most recent user message, or "" if none.
func (c ConversationContext) LastUserTurn() string {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Role == RoleUser {
			return c.Turns[i].Content
		}
	}
	return ""
}

// InsuranceLine classifies a line of business.
type InsuranceLine string

const (
	LineAuto     InsuranceLine = "auto"
	LineHome     InsuranceLine = "home"
	LineRenters  InsuranceLine = "renters"
	LineCondo    InsuranceLine = "condo"
	LineLife     InsuranceLine = "life"
	LineUmbrella InsuranceLine = "umbrella"
	LineFlood    InsuranceLine = "flood"
)

// ValidInsuranceLines is the set of recognised lines of business.
var ValidInsuranceLines = map[InsuranceLine]bool{
	LineAuto: true, LineHome: true, LineRenters: true, LineCondo: true,
	LineLife: true, LineUmbrella: true, LineFlood: true,
}

// Document is a knowledge-base article before ingestion.
type Document struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	InsuranceType string `json:"insurance_type,omitempty"`
	State         string `json:"state,omitempty"`
	SourceURL     string `json:"source_url,omitempty"`
}

// ValidDocumentTypes enumerates accepted knowledge-base document types.
var ValidDocumentTypes = map[string]bool{
	"glossary":   true,
	"guide":      true,
	"faq":        true,
	"regulation": true,
	"carrier":    true,
	"coverage":   true,
}

// USStates maps two-letter postal codes to state names. DC included.
var USStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut",
	"DE": "Delaware", "DC": "District of Columbia", "FL": "Florida",
	"GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky",
	"LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana",
	"NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire",
	"NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania",
	"RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming",
}
