package conversation

import (
	"regexp"
	"strings"
)

var (
	taxIDPattern       = regexp.MustCompile(`\d{3}\.?\d{3}\.?\d{3}-?\d{2}`)
	orderNumberPattern = regexp.MustCompile(`\b(\d{4,6})\b`)
)

// ExtractTaxID finds a CPF in free text and returns its 11 digits, or "".
// Runs of one repeated digit are skipped in favour of a later candidate.
func ExtractTaxID(text string) string {
	for _, m := range taxIDPattern.FindAllString(text, -1) {
		digits := onlyDigits(m)
		if len(digits) == 11 && !repeatedDigit(digits) {
			return digits
		}
	}
	return ""
}

// LooksLikeOrderNumber reports whether text carries digits that cannot be a CPF.
func LooksLikeOrderNumber(text string) bool {
	d := onlyDigits(text)
	return d != "" && len(d) != 11
}

// orderNumberIn returns the first 4 to 6 digit token of text.
func orderNumberIn(text string) string {
	m := orderNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func repeatedDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
