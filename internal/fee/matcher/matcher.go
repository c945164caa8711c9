package matcher

import (
	"strings"
	"unicode"
)

// DefaultMinSubstringLength is the shortest normalized label allowed to take
// part in substring matching.
const DefaultMinSubstringLength = 3

// SynonymGroup lists keywords that name the same fee concept.
type SynonymGroup struct {
	Concept  string
	Keywords []string
}

// DefaultSynonyms returns the built-in synonym table.
func DefaultSynonyms() []SynonymGroup {
	return []SynonymGroup{
		{Concept: "tuition", Keywords: []string{"tuition", "tution"}},
		{Concept: "transport", Keywords: []string{"transport", "bus"}},
		{Concept: "library", Keywords: []string{"library", "book"}},
		{Concept: "uniform", Keywords: []string{"uniform"}},
		{Concept: "exam", Keywords: []string{"exam", "examination"}},
		{Concept: "activity", Keywords: []string{"activity", "activities"}},
	}
}

// Matcher maps free-text payment labels onto known fee component names.
// A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	synonyms     []SynonymGroup
	minSubstring int
}

// New builds a Matcher. Keywords are normalized once up front.
func New(synonyms []SynonymGroup, minSubstring int) *Matcher {
	if minSubstring <= 0 {
		minSubstring = DefaultMinSubstringLength
	}

	groups := make([]SynonymGroup, 0, len(synonyms))
	for _, group := range synonyms {
		keywords := make([]string, 0, len(group.Keywords))
		for _, keyword := range group.Keywords {
			if normalized := Normalize(keyword); normalized != "" {
				keywords = append(keywords, normalized)
			}
		}
		if len(keywords) == 0 {
			continue
		}
		groups = append(groups, SynonymGroup{Concept: group.Concept, Keywords: keywords})
	}

	return &Matcher{synonyms: groups, minSubstring: minSubstring}
}

// Default returns a Matcher backed by DefaultSynonyms.
func Default() *Matcher {
	return New(DefaultSynonyms(), DefaultMinSubstringLength)
}

// Match returns the first label in known that corresponds to label.
// Stronger rules are tried across every known label before weaker ones:
// exact, case-insensitive, normalized, then synonym and substring per label.
func (m *Matcher) Match(label string, known []string) (string, bool) {
	if m == nil {
		m = Default()
	}
	if strings.TrimSpace(label) == "" || len(known) == 0 {
		return "", false
	}

	for _, candidate := range known {
		if candidate == label {
			return candidate, true
		}
	}

	trimmed := strings.TrimSpace(label)
	for _, candidate := range known {
		if strings.EqualFold(strings.TrimSpace(candidate), trimmed) {
			return candidate, true
		}
	}

	normalized := Normalize(label)
	if normalized == "" {
		return "", false
	}
	for _, candidate := range known {
		if Normalize(candidate) == normalized {
			return candidate, true
		}
	}

	for _, candidate := range known {
		other := Normalize(candidate)
		if other == "" {
			continue
		}
		if m.sameConcept(normalized, other) {
			return candidate, true
		}
		if m.substringMatch(normalized, other) {
			return candidate, true
		}
	}

	return "", false
}

// Matches reports whether label refers to the single component name.
func (m *Matcher) Matches(label, component string) bool {
	_, ok := m.Match(label, []string{component})
	return ok
}

func (m *Matcher) sameConcept(a, b string) bool {
	for _, group := range m.synonyms {
		if containsAny(a, group.Keywords) && containsAny(b, group.Keywords) {
			return true
		}
	}
	return false
}

func (m *Matcher) substringMatch(a, b string) bool {
	if len(a) <= m.minSubstring || len(b) <= m.minSubstring {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Normalize lower-cases a label and drops everything but letters and digits.
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAny(value string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(value, keyword) {
			return true
		}
	}
	return false
}
