package survey

import (
	"strings"
	"unicode"
)

func digitsOnly(s string, limit int) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= limit {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCNPJ formats the digits of s as XX.XXX.XXX/XXXX-XX. Partial input is
// formatted up to the digits available; extra digits are dropped.
func FormatCNPJ(s string) string {
	digits := digitsOnly(s, 14)
	groups := []int{2, 3, 3, 4, 2}
	seps := []byte{'.', '.', '/', '-'}

	var b strings.Builder
	pos := 0
	for i, size := range groups {
		if pos >= len(digits) {
			break
		}
		if i > 0 {
			b.WriteByte(seps[i-1])
		}
		end := pos + size
		if end > len(digits) {
			end = len(digits)
		}
		b.WriteString(digits[pos:end])
		pos = end
	}
	return b.String()
}

// FormatPhone formats a Brazilian phone number as (XX) XXXX-XXXX, or
// (XX) XXXXX-XXXX for eleven digit mobile numbers. Fewer than six digits are
// returned unformatted.
func FormatPhone(s string) string {
	digits := digitsOnly(s, 11)
	prefix := 4
	if len(digits) > 10 {
		prefix = 5
	}
	if len(digits) < 2+prefix {
		return digits
	}
	return "(" + digits[:2] + ") " + digits[2:2+prefix] + "-" + digits[2+prefix:]
}

// NormalizeCNPJ strips everything but digits, for comparisons.
func NormalizeCNPJ(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
