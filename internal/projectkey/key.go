// Package projectkey maps human-entered project names to the key used to join sales,
// expenses and payroll belonging to the same project.
package projectkey

import "strings"

// Key is a canonical project key. The zero value is the empty key.
type Key string

// Unassigned is the bucket for expenses not yet attributed to a project. It is the
// canonical form of the "Gasto General" label used in the expenses sheet.
const Unassigned Key = "GASTO GENERAL"

// UnassignedLabel is the display name written for unassigned expenses.
const UnassignedLabel = "Gasto General"

// Canonicalize trims the name, collapses internal whitespace runs to one space and
// upper-cases it. Canonicalize(string(Canonicalize(x))) == Canonicalize(x).
func Canonicalize(name string) Key {
	return Key(strings.ToUpper(strings.Join(strings.Fields(name), " ")))
}

// OrUnassigned canonicalizes name, mapping blank names to Unassigned.
func OrUnassigned(name string) Key {
	key := Canonicalize(name)
	if key == "" {
		return Unassigned
	}
	return key
}

// IsUnassigned reports whether k is the unassigned bucket or empty.
func (k Key) IsUnassigned() bool {
	return k == "" || Canonicalize(string(k)) == Unassigned
}

// Matches compares two keys after canonicalizing both, so raw names stored by other
// writers still join correctly.
func (k Key) Matches(other Key) bool {
	return Canonicalize(string(k)) == Canonicalize(string(other))
}

func (k Key) String() string {
	return string(k)
}
