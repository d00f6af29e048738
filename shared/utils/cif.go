package utils

import (
	"regexp"
	"strings"
)

var cifFormat = regexp.MustCompile(`^[A-HJ-NP-SUVW][0-9]{7}[0-9A-J]$`)

const cifControlLetters = "JABCDEFGHI"

// NormalizeCIF upper-cases cif and trims surrounding spaces.
func NormalizeCIF(cif string) string {
	return strings.ToUpper(strings.TrimSpace(cif))
}

// ValidateCIF checks a Spanish company tax identifier.
//
// Organisations starting with A, B, E or H carry a numeric control; K, P, Q,
// R, S, N and W carry a letter; the rest may use either form.
func ValidateCIF(cif string) bool {
	cif = NormalizeCIF(cif)
	if !cifFormat.MatchString(cif) {
		return false
	}

	initial := cif[0]
	digits := cif[1:8]
	control := cif[8]

	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[i] - '0')
		if i%2 == 1 {
			sum += d
			continue
		}
		doubled := d * 2
		sum += doubled/10 + doubled%10
	}
	expected := (10 - sum%10) % 10

	digitOK := control == byte('0'+expected)
	letterOK := control == cifControlLetters[expected]

	switch {
	case strings.IndexByte("ABEH", initial) >= 0:
		return digitOK
	case strings.IndexByte("KPQRSNW", initial) >= 0:
		return letterOK
	default:
		return digitOK || letterOK
	}
}
