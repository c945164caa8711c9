package academicyear

import "strings"

// Normalize converts "YYYY-YYYY" into the canonical short form "YYYY-YY".
// Any other non-empty value is returned trimmed but otherwise unchanged.
func Normalize(year string) string {
	year = strings.TrimSpace(year)
	if year == "" {
		return ""
	}

	start, end, ok := strings.Cut(year, "-")
	if !ok || len(start) != 4 || len(end) != 4 {
		return year
	}
	if !isDigits(start) || !isDigits(end) {
		return year
	}
	return start + "-" + end[2:]
}

// Equal reports whether two academic year labels refer to the same year.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
