package conversation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/carlaherrera/apina-front/internal/scheduling"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Keywords are matched as whole words of the folded message, morning first.
var (
	morningKeywords = []string{
		"manha", "matutino", "cedo", "antes do almoco",
		"antes do meio dia", "am", "a.m", "de manha", "pela manha",
		"08h", "09h", "10h", "11h", "8h", "9h", "8:00", "9:00", "10:00", "11:00",
		"8 horas", "9 horas", "10 horas", "11 horas",
		"oito horas", "nove horas", "dez horas", "onze horas",
	}
	afternoonKeywords = []string{
		"tarde", "vespertino", "depois do almoco",
		"depois do meio dia", "pm", "p.m", "de tarde", "pela tarde",
		"13h", "14h", "15h", "16h", "17h", "18h", "13:00", "14:00", "15:00", "16:00", "17:00", "18:00",
		"1h", "2h", "3h", "4h", "5h", "6h", "1:00", "2:00", "3:00", "4:00", "5:00", "6:00",
		"13 horas", "14 horas", "15 horas", "16 horas", "17 horas", "18 horas",
		"1 hora", "2 horas", "3 horas", "4 horas", "5 horas", "6 horas",
		"uma hora", "duas horas", "tres horas", "quatro horas", "cinco horas", "seis horas",
	}
)

var (
	titleCaser = cases.Title(language.BrazilianPortuguese)

	morningPattern   = keywordPattern(morningKeywords)
	afternoonPattern = keywordPattern(afternoonKeywords)
)

// keywordPattern matches any keyword bounded by non-word characters, so "am"
// does not fire inside "vamos" and "manha" does not fire inside "amanha".
func keywordPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// InterpretPeriod maps free text to a period with the local keyword table.
// It returns "" when nothing matches.
func InterpretPeriod(text string) scheduling.Period {
	folded := fold(text)
	if strings.TrimSpace(folded) == "" {
		return ""
	}
	if morningPattern.MatchString(folded) {
		return scheduling.Morning
	}
	if afternoonPattern.MatchString(folded) {
		return scheduling.Afternoon
	}
	return ""
}

// fold lowercases and strips diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// capitalize upper-cases the first letter of a weekday name.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, rest, found := strings.Cut(s, "-")
	if !found {
		return titleCaser.String(s)
	}
	return titleCaser.String(first) + "-" + rest
}
