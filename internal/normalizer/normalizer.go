// Package normalizer canonicalizes text, amount and date fields from both
// sides of a comparison before any rule runs. All functions are pure.
package normalizer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes characters and removes combining marks, so
// "Transferência" compares equal to "TRANSFERENCIA" after upper-casing.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText upper-cases the input, strips diacritics, replaces
// punctuation with spaces and collapses runs of whitespace. Keyword and
// similarity comparisons operate on this canonical form.
func NormalizeText(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		out = s
	}

	out = strings.ToUpper(out)

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-':
			// Hyphens are kept; they carry signal in external-id patterns
			// like TRANSF-123-ENTRADA.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize splits a normalized string into comparison tokens.
func Tokenize(s string) []string {
	return strings.Fields(NormalizeText(s))
}

// TruncateToDay truncates a timestamp to calendar-day granularity,
// timezone-naive: only the date component survives, anchored at midnight
// UTC.
func TruncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return TruncateToDay(a).Equal(TruncateToDay(b))
}

// DaysApart returns the absolute distance between two timestamps in whole
// calendar days.
func DaysApart(a, b time.Time) int {
	da := TruncateToDay(a)
	db := TruncateToDay(b)
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// ParseAmount coerces an amount string into a fixed-precision decimal. It
// accepts plain decimal forms ("1234.56", "-200"), currency symbols and the
// Brazilian comma-decimal form ("1.234,56").
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)

	// "1.234,56" uses '.' as thousand separator and ',' as decimal mark.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else if dots := strings.Count(s, "."); dots > 1 {
		// "1.234.567" with no comma is thousand-separated with no decimals.
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format '%s': %w", s, err)
	}

	return d.Round(2), nil
}
