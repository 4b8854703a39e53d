// Package phone normalizes client-supplied phone numbers to a canonical
// E.164-like form. Normalization is best effort: input that cannot be fully
// validated is still cleaned and prefixed rather than rejected, so the auth
// flow tolerates varied client formatting.
package phone

import "strings"

// separators stripped before normalization.
const separators = " -().\t"

// Normalize cleans the input and returns it in +<digits> form. A leading
// "00" international prefix is rewritten to "+". Non-digit characters other
// than the leading "+" are dropped.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)

	var b strings.Builder
	for i, r := range s {
		if i == 0 && r == '+' {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if strings.ContainsRune(separators, r) {
			continue
		}
		// Drop anything else (letters, stray symbols).
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "+" {
		return ""
	}

	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if strings.HasPrefix(cleaned, "00") {
		return "+" + cleaned[2:]
	}
	return "+" + cleaned
}

// IsPlausible reports whether the normalized number has a length that could
// be a real E.164 number (country code plus subscriber digits).
func IsPlausible(normalized string) bool {
	if !strings.HasPrefix(normalized, "+") {
		return false
	}
	digits := len(normalized) - 1
	return digits >= 7 && digits <= 15
}
