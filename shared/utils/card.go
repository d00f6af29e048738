package utils

import (
	"fmt"
	"regexp"
)

var cardDigits = regexp.MustCompile(`^[0-9]{16}$`)

// GenerateCardNumber returns a 16 digit VISA-style number with a Luhn check digit.
func GenerateCardNumber() string {
	partial := "4" + randDigits(14)
	return partial + string(rune('0'+luhnCheckDigit(partial)))
}

// ValidateCardNumber checks length, digits and the Luhn checksum.
func ValidateCardNumber(number string) bool {
	if !cardDigits.MatchString(number) {
		return false
	}
	return luhnCheckDigit(number[:len(number)-1]) == int(number[len(number)-1]-'0')
}

// luhnCheckDigit returns the digit that makes partial+digit Luhn valid.
func luhnCheckDigit(partial string) int {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		d := int(partial[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// GenerateCVV returns a three digit code in [100, 999].
func GenerateCVV() int {
	return 100 + randInt(900)
}

// GeneratePIN returns four random digits.
func GeneratePIN() string {
	return fmt.Sprintf("%04d", randInt(10000))
}
