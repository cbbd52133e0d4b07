package domain

import "strings"

// Location is a parsed "City, ST" pair.
type Location struct {
	City  string
	State string
}

// ParseLocation parses free-text like "Austin, TX" or "Austin TX" into a
// Location. It returns ok=false for anything it cannot resolve to a known
// US state rather than guessing at substrings.
func ParseLocation(text string) (Location, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Location{}, false
	}

	// "City, ST" with the comma as the authoritative separator.
	if idx := strings.LastIndexByte(text, ','); idx != -1 {
		city := strings.TrimSpace(text[:idx])
		st := normalizeState(text[idx+1:])
		if city == "" || st == "" {
			return Location{}, false
		}
		return Location{City: city, State: st}, true
	}

	// No comma: accept a trailing state token ("Austin TX", "austin texas").
	fields := strings.Fields(text)
	if len(fields) < 2 {
		// A bare state code ("TX") is still a usable location.
		if st := normalizeState(text); st != "" {
			return Location{State: st}, true
		}
		return Location{}, false
	}
	st := normalizeState(fields[len(fields)-1])
	if st == "" {
		return Location{}, false
	}
	return Location{
		City:  strings.Join(fields[:len(fields)-1], " "),
		State: st,
	}, true
}

// normalizeState resolves a state code or full name to its postal code,
// or "" if unrecognised.
func normalizeState(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	up := strings.ToUpper(s)
	if _, ok := USStates[up]; ok {
		return up
	}
	for code, name := range USStates {
		if strings.EqualFold(name, s) {
			return code
		}
	}
	return ""
}
