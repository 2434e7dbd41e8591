package domain

import (
	"regexp"
	"slices"
	"strings"
)

// FieldAddress and FieldPostcode are the coffee-shop fields postcode filtering works on.
const (
	FieldAddress  = "address"
	FieldPostcode = "postcode"
)

// BT + one or two digits, as a whole word.
var postcodePrefixRe = regexp.MustCompile(`(?i)\bBT\d{1,2}\b`)

// PostcodePrefix extracts the upper-cased outward postcode prefix (e.g. "BT1",
// "BT20") from a free-form address, or "" if there is none.
func PostcodePrefix(address string) string {
	return strings.ToUpper(postcodePrefixRe.FindString(address))
}

// PostcodePrefixes returns the sorted unique prefixes found in the address
// field of the records.
func PostcodePrefixes(records []Record) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		if p := PostcodePrefix(r.String(FieldAddress)); p != "" {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// WithPostcode returns a copy of r with the postcode field derived from its address.
func WithPostcode(r Record) Record {
	return r.Patch(map[string]any{FieldPostcode: PostcodePrefix(r.String(FieldAddress))})
}
