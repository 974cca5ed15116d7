package models

import "strings"

// PairID returns the conversation key of two users. It does not depend on
// argument order.
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, "_")
}
