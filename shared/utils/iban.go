package utils

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	ibanCountry = "ES"
	ibanBank    = "1234"
	ibanBranch  = "1234"
)

var ibanChars = regexp.MustCompile(`^[A-Z0-9]+$`)

// NormalizeIBAN removes spaces and upper-cases the input.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}

// ValidateIBAN runs the ISO 13616 mod-97 check.
func ValidateIBAN(iban string) bool {
	iban = NormalizeIBAN(iban)
	if len(iban) < 15 || len(iban) > 34 || !ibanChars.MatchString(iban) {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	return mod97(rearranged) == 1
}

// GenerateIBAN returns a Spanish IBAN (24 chars) with valid check digits.
func GenerateIBAN() string {
	bban := ibanBank + ibanBranch + randDigits(2) + randDigits(10)
	check := 98 - mod97(bban+ibanCountry+"00")
	return fmt.Sprintf("%s%02d%s", ibanCountry, check, bban)
}

// mod97 computes the remainder of the numeric expansion of s (A=10 ... Z=35)
// digit by digit so arbitrarily long inputs never overflow.
func mod97(s string) int {
	rem := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			rem = (rem*100 + v) % 97
		}
	}
	return rem
}
