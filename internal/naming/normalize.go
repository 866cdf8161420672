// Package naming holds the pure allocation rules for customer part names and
// per-TEP-code material names. Nothing here touches storage; the catalog
// services load the relevant rows, ask for a plan, and persist it.
package naming

import "strings"

// Normalize trims s and collapses every run of whitespace to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameKey is the collision key for names: normalized and lower-cased.
func NameKey(s string) string {
	return strings.ToLower(Normalize(s))
}
