package match

import (
	"strings"
)

// LocationProfile captures the normalization output for a "City, State" string.
type LocationProfile struct {
	Original string
	City     string
	State    string
}

// ParseLocation splits a free-text location on commas. The first segment is the city and the
// second the state; anything after a second comma is ignored. Both parts are trimmed and
// lower-cased, and a missing part resolves to "".
func ParseLocation(input string) LocationProfile {
	segments := strings.Split(input, ",")
	profile := LocationProfile{Original: input}
	profile.City = normalizePart(segments[0])
	if len(segments) > 1 {
		profile.State = normalizePart(segments[1])
	}
	return profile
}

// SameCity reports whether both locations resolve to the same city token.
// Two empty cities compare equal.
func (p LocationProfile) SameCity(other LocationProfile) bool {
	return p.City == other.City
}

// SameState reports whether both locations resolve to the same state token.
func (p LocationProfile) SameState(other LocationProfile) bool {
	return p.State == other.State
}

// CountKeywords returns how many of the keywords occur in text, ignoring case. Each keyword
// counts at most once no matter how often it repeats.
func CountKeywords(text string, keywords []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			count++
		}
	}
	return count
}

// MatchedKeywords returns the keywords found in text, in keyword order.
func MatchedKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			out = appendUnique(out, kw)
		}
	}
	return out
}

func normalizePart(part string) string {
	return strings.ToLower(strings.TrimSpace(part))
}

func appendUnique(s []string, v string) []string {
	if v == "" {
		return s
	}
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
