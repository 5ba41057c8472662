package utils

import "strings"

// NormalizePhoneNumber reduces a phone number to the digits-only E.164 form
// WhatsApp uses (no leading plus). Local Israeli numbers get the 972
// country code.
func NormalizePhoneNumber(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	// 05x-xxxxxxx style local numbers
	if strings.HasPrefix(number, "0") && len(number) == 10 {
		return "972" + number[1:]
	}
	// 00-prefixed international dialing
	if strings.HasPrefix(number, "00") {
		return number[2:]
	}
	return number
}

// SamePhoneNumber compares two numbers after normalization.
func SamePhoneNumber(a, b string) bool {
	return NormalizePhoneNumber(a) == NormalizePhoneNumber(b)
}
