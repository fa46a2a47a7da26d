// Package normalize canonicalizes the identity keys used to match
// conversation records: email addresses and phone-like contact strings.
// The same functions run on write and on lookup, including on values
// read back from the row store, so stored and queried keys always
// compare under one normalization.
package normalize

import "strings"

// Email trims surrounding whitespace and lowercases. Total function.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Phone reduces a phone-like string to a bare digit key. Eleven digits
// with a leading 1 are treated as a US number with country code and the
// 1 is dropped; ten digits pass through; anything else keeps whatever
// digits were given, possibly empty. Never rejects.
func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}
