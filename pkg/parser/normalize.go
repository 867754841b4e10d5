// Package parser extracts structured transactions from bank SMS bodies and UPI app
// notifications.
//
// Every exported function is pure and total: the same input always yields the same
// output and malformed input is reported as "not a transaction", never as an error.
// Both extractors classify first and only then run the field lookups.
package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var horizontalSpace = regexp.MustCompile(`[ \t\r\f\v]+`)

// normalizeText folds compatibility characters (full-width digits, no-break spaces)
// and collapses whitespace inside each line. Empty lines are dropped; line breaks are
// kept because notification parts are matched line by line.
func normalizeText(s string) string {
	lines := strings.Split(norm.NFKC.String(s), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// normalizeSender strips everything but letters and upper-cases the rest, so
// "AD-HDFCBK" and "vm-hdfcbk" both become comparable with table entries.
func normalizeSender(sender string) string {
	var b strings.Builder
	b.Grow(len(sender))
	for _, r := range sender {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}
