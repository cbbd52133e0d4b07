package domain

import "strings"

// NormalizeLine lowercases and validates a line-of-business string.
// Returns ErrUnknownLine for anything outside ValidInsuranceLines.
func NormalizeLine(s string) (InsuranceLine, error) {
	line := InsuranceLine(strings.ToLower(strings.TrimSpace(s)))
	if line == "" {
		return "", NewValidationError("insurance_type", s, ErrUnknownLine)
	}
	if !ValidInsuranceLines[line] {
		return "", NewValidationError("insurance_type", s, ErrUnknownLine)
	}
	return line, nil
}

// NormalizeState validates a state code or name, returning the postal code.
func NormalizeState(s string) (string, error) {
	st := normalizeState(s)
	if st == "" {
		return "", NewValidationError("state", s, ErrUnknownState)
	}
	return st, nil
}

// ValidateDocument checks a knowledge-base document before ingestion.
func ValidateDocument(doc Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return NewValidationError("id", doc.ID, ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Title) == "" {
		return NewValidationError("title", doc.Title, ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return NewValidationError("content", "", ErrInvalidDocument)
	}
	if !ValidDocumentTypes[doc.Type] {
		return NewValidationError("type", doc.Type, ErrInvalidDocument)
	}
	if doc.InsuranceType != "" {
		if _, err := NormalizeLine(doc.InsuranceType); err != nil {
			return err
		}
	}
	if doc.State != "" {
		if _, err := NormalizeState(doc.State); err != nil {
			return err
		}
	}
	return nil
}
