package common

import "strings"

// utf8BOM prefixes CSV files written for spreadsheet tools.
const utf8BOM = "\uFEFF"

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, utf8BOM)
}

// BOM returns the UTF-8 byte order mark.
func BOM() string {
	return utf8BOM
}
