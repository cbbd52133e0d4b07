package insnlp

import (
	"testing"

	"github.com/policywise/policywise/engine/domain"
)

func TestExtractLine(t *testing.T) {
	tests := []struct {
		text   string
		want   domain.InsuranceLine
		wantOK bool
	}{
		{"I just bought a car", domain.LineAuto, true},
		{"does collision cover hail?", domain.LineAuto, true},
		{"shopping for home insurance", domain.LineHome, true},
		{"my apartment needs coverage", domain.LineRenters, true},
		{"term life quotes", domain.LineLife, true},
		{"do I need an umbrella policy", domain.LineUmbrella, true},
		{"do I live in a floodplain", domain.LineFlood, true},
		{"what is a deductible", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractLine(tt.text)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ExtractLine(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractLine_PhraseBeatsToken(t *testing.T) {
	// "life insurance" must resolve as a phrase even though "insurance"
	// alone means nothing.
	got, ok := ExtractLine("looking at life insurance options")
	if !ok || got != domain.LineLife {
		t.Errorf("got %q, %v", got, ok)
	}
}

func TestExtractState(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"I live in TX", "TX", true},
		{"moving to California next month", "CA", true},
		{"CA.", "CA", true},
		{"hi there, how are you", "", false}, // "hi" must not match Hawaii
		{"either this or that", "", false},   // "or" must not match Oregon
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractState(tt.text)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ExtractState(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLineFromConversation_NewestWins(t *testing.T) {
	conv := domain.ConversationContext{
		Turns: []domain.Turn{
			{Role: domain.RoleUser, Content: "I need car insurance"},
			{Role: domain.RoleAssistant, Content: "Sure, tell me about your car"},
			{Role: domain.RoleUser, Content: "actually I want renters coverage instead"},
		},
	}
	line, ok := LineFromConversation(conv)
	if !ok || line != domain.LineRenters {
		t.Errorf("got %q, %v; the most recent user intent should win", line, ok)
	}
}

func TestLineFromConversation_IgnoresAssistantTurns(t *testing.T) {
	conv := domain.ConversationContext{
		Turns: []domain.Turn{
			{Role: domain.RoleUser, Content: "I need help"},
			{Role: domain.RoleAssistant, Content: "Are you asking about flood insurance?"},
		},
	}
	if _, ok := LineFromConversation(conv); ok {
		t.Error("assistant turns must not drive inference")
	}
}

func TestStateFromConversation(t *testing.T) {
	conv := domain.ConversationContext{
		Turns: []domain.Turn{
			{Role: domain.RoleUser, Content: "I'm in New York"},
			{Role: domain.RoleUser, Content: "wait, I meant FL"},
		},
	}
	st, ok := StateFromConversation(conv)
	if !ok || st != "FL" {
		t.Errorf("got %q, %v", st, ok)
	}
}
