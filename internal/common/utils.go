package common

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// HasAny returns true if s contains any of the substrings, ignoring case.
func HasAny(s string, subs ...string) bool {
	ls := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(ls, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Squash trims s and collapses every run of whitespace into one space.
func Squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// digitGroupRe finds thousands written with plain spaces ("1 013").
var digitGroupRe = regexp.MustCompile(`(^|[^\d.])\d{1,3}(?: \d{3})+\b`)

// numberReplacer maps typographic signs and separators scraped from pages
// onto plain ASCII so strconv can read them.
var numberReplacer = strings.NewReplacer(
	"−", "-", // minus sign
	"–", "-", // en dash used as minus
	"\u00a0", "", // no-break space
	"\u2009", "", // thin space
	"\u202f", "", // narrow no-break space
	",", ".",
	"+", "",
)

// Numbers returns every number found in s, in order. "−3°", "+12", "7,5 мм"
// are read as signed numbers; a dash right after a digit is a range ("2–5")
// and "1 013" is one number.
func Numbers(s string) []float64 {
	norm := numberReplacer.Replace(s)
	norm = digitGroupRe.ReplaceAllStringFunc(norm, func(m string) string {
		i := strings.IndexAny(m, "0123456789")
		return m[:i] + strings.ReplaceAll(m[i:], " ", "")
	})
	var out []float64
	for _, loc := range numberRe.FindAllStringIndex(norm, -1) {
		m := norm[loc[0]:loc[1]]
		if m[0] == '-' && loc[0] > 0 && isDigit(norm[loc[0]-1]) {
			m = m[1:]
		}
		v, err := strconv.ParseFloat(m, 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

// ParseNumber returns the first number in s.
func ParseNumber(s string) (float64, bool) {
	nums := Numbers(s)
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0], true
}

// ParseInt returns the first number in s rounded to an integer.
func ParseInt(s string) (int, bool) {
	v, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	return int(math.Round(v)), true
}

// Compass returns the first compass point token in s ("3 м/с, СЗ" -> "СЗ",
// "ЮЗ 11 км/ч" -> "ЮЗ"), or "" when there is none.
func Compass(s string) string {
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }) {
		if isCompass(tok) {
			return tok
		}
	}
	return ""
}

func isCompass(tok string) bool {
	n := 0
	for _, r := range tok {
		if !strings.ContainsRune("СЮЗВNSEW", r) {
			return false
		}
		n++
	}
	return n > 0 && n <= 3
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
