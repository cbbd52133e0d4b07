package domain

import (
	"errors"
	"testing"
)

func TestNormalizeLine(t *testing.T) {
	for in, want := range map[string]InsuranceLine{
		"auto":    LineAuto,
		"AUTO":    LineAuto,
		" home ":  LineHome,
		"renters": LineRenters,
		"umbrella": LineUmbrella,
	} {
		got, err := NormalizeLine(in)
		if err != nil {
			t.Errorf("NormalizeLine(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeLine(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "pet", "motorcycle"} {
		if _, err := NormalizeLine(in); !errors.Is(err, ErrUnknownLine) {
			t.Errorf("NormalizeLine(%q) err = %v, want ErrUnknownLine", in, err)
		}
	}
}

func TestNormalizeState(t *testing.T) {
	for in, want := range map[string]string{
		"TX":         "TX",
		"tx":         "TX",
		"California": "CA",
		"district of columbia": "DC",
	} {
		got, err := NormalizeState(in)
		if err != nil {
			t.Errorf("NormalizeState(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeState(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := NormalizeState("ZZ"); !errors.Is(err, ErrUnknownState) {
		t.Errorf("want ErrUnknownState, got %v", err)
	}
}

func TestValidateDocument(t *testing.T) {
	valid := Document{
		ID:      "doc-1",
		Title:   "What is a deductible?",
		Type:    "faq",
		Content: "A deductible is the amount you pay before coverage kicks in.",
	}
	if err := ValidateDocument(valid); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	withMeta := valid
	withMeta.InsuranceType = "auto"
	withMeta.State = "tx"
	if err := ValidateDocument(withMeta); err != nil {
		t.Fatalf("document with metadata rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Document)
	}{
		{"missing id", func(d *Document) { d.ID = " " }},
		{"missing title", func(d *Document) { d.Title = "" }},
		{"missing content", func(d *Document) { d.Content = "" }},
		{"unknown type", func(d *Document) { d.Type = "blog" }},
		{"unknown line", func(d *Document) { d.InsuranceType = "pet" }},
		{"unknown state", func(d *Document) { d.State = "ZZ" }},
	}
	for _, tc := range cases {
		doc := valid
		tc.mutate(&doc)
		if err := ValidateDocument(doc); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := NewValidationError("state", "ZZ", ErrUnknownState)
	if !errors.Is(err, ErrUnknownState) {
		t.Error("ValidationError should unwrap to its sentinel")
	}
}
