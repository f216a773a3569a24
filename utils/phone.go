package utils

import (
	"regexp"
	"strings"
)

var nonDigit = regexp.MustCompile(`\D`)

// ToE164 normalizes a US-resolvable phone number to +1XXXXXXXXXX.
// Returns "" when the input cannot be a US number. The function is
// idempotent: ToE164(ToE164(x)) == ToE164(x).
func ToE164(phoneNumber string) string {
	digits := nonDigit.ReplaceAllString(phoneNumber, "")

	// Strip a leading country code if present
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}

	if len(digits) != 10 {
		return ""
	}
	// NANP: area code and exchange cannot start with 0 or 1
	if digits[0] == '0' || digits[0] == '1' || digits[3] == '0' || digits[3] == '1' {
		return ""
	}

	return "+1" + digits
}

// ValidatePhoneNumber reports whether the input normalizes to E.164.
func ValidatePhoneNumber(phoneNumber string) bool {
	return ToE164(phoneNumber) != ""
}

// DisplayPhoneNumber formats a number for operator-facing views.
func DisplayPhoneNumber(phoneNumber string) string {
	e164 := ToE164(phoneNumber)
	if e164 == "" {
		return phoneNumber
	}
	// +1 (XXX) XXX-XXXX
	return "+1 (" + e164[2:5] + ") " + e164[5:8] + "-" + e164[8:]
}
