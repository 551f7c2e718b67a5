// Package phone provides channel address canonicalization.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Canonicalizer turns raw channel addresses into the stable lookup key used
// for tenant binding. It holds no mutable state and is safe for concurrent use.
type Canonicalizer struct {
	region      string
	countryCode string
}

// NewCanonicalizer creates a canonicalizer for the given default region
// (e.g. "NG") and country calling code (e.g. "234").
func NewCanonicalizer(region, countryCode string) Canonicalizer {
	return Canonicalizer{
		region:      strings.ToUpper(strings.TrimSpace(region)),
		countryCode: strings.TrimPrefix(strings.TrimSpace(countryCode), "+"),
	}
}

// Canonicalize returns the canonical form of raw. The result is a pure
// function of raw, and Canonicalize(Canonicalize(x)) == Canonicalize(x).
// An empty string is returned when raw holds no digits.
func (c Canonicalizer) Canonicalize(raw string) string {
	candidate := c.applyRules(raw)
	if candidate == "" {
		return ""
	}

	number, err := phonenumbers.Parse(candidate, c.region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return candidate
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// applyRules strips formatting, replaces a national trunk zero with the
// country code and makes sure the result carries a leading plus.
func (c Canonicalizer) applyRules(raw string) string {
	trimmed := strings.TrimSpace(raw)
	plus := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	switch {
	case plus:
		return "+" + digits
	case strings.HasPrefix(digits, "00"):
		return "+" + strings.TrimPrefix(digits, "00")
	case strings.HasPrefix(digits, "0"):
		return "+" + c.countryCode + strings.TrimPrefix(digits, "0")
	default:
		// Bare international form as delivered by channel webhooks.
		return "+" + digits
	}
}

// ChannelForm returns the canonical address without the leading plus, the
// format the messaging channel expects for outbound recipients.
func ChannelForm(canonical string) string {
	return strings.TrimPrefix(canonical, "+")
}
