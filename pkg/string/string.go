// Package string holds small helpers for normalizing request input.
package string

import "strings"

// TrimStrings trims leading and trailing whitespace from each target in place.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}
