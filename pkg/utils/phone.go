package utils

import "strings"

// NormalizePhone reduces a phone number or gateway JID to its digits.
// Only a real JID suffix is cut: the "@host" part (plus a ":device" tag
// before it), a trailing "-group", or the "-<created>" half of a
// "<owner>-<created>@g.us" group id. Separators inside a formatted number
// such as "55-11-99999-0000" are kept as digits.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		host := raw[i+1:]
		raw = raw[:i]
		if j := strings.IndexByte(raw, ':'); j >= 0 {
			raw = raw[:j]
		}
		if host == "g.us" {
			if j := strings.IndexByte(raw, '-'); j > 0 {
				raw = raw[:j]
			}
		}
	}
	raw = strings.TrimSuffix(raw, "-group")

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone keeps the last four digits, for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
