package util

import "strings"

// MaskTarget redacts an email or phone identifier for log output.
// Plaintext targets are PII and must never land in logs in full.
func MaskTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}

	if at := strings.Index(target, "@"); at > 0 {
		local := target[:at]
		domain := target[at:]
		if len(local) <= 2 {
			return strings.Repeat("*", len(local)) + domain
		}
		return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + domain
	}

	// Phone-like: keep country prefix and last two digits
	if len(target) <= 4 {
		return strings.Repeat("*", len(target))
	}
	return target[:3] + strings.Repeat("*", len(target)-5) + target[len(target)-2:]
}
