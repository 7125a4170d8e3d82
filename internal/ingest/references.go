package ingest

import (
	"fmt"
	"strings"

	"sqr/pkg/models"
)

// Rule decides when a stored reference covers a candidate reference.
type Rule string

const (
	// RuleContains treats a candidate as known when it appears inside a stored reference
	// or a stored reference appears inside it. A stored "FE-100" therefore covers both
	// "FE-100-R1" and "100".
	RuleContains Rule = "contains"
	// RuleExact requires the stored reference to equal the candidate.
	RuleExact Rule = "exact"
)

// ParseRule validates a configured rule name. Empty selects RuleContains.
func ParseRule(name string) (Rule, error) {
	switch Rule(strings.ToLower(strings.TrimSpace(name))) {
	case "", RuleContains:
		return RuleContains, nil
	case RuleExact:
		return RuleExact, nil
	default:
		return "", fmt.Errorf("unknown dedup rule %q (want %s or %s)", name, RuleContains, RuleExact)
	}
}

// ReferenceSet is the append-only set of invoice references already turned into expenses.
// References are compared after trimming surrounding whitespace; case is significant.
type ReferenceSet struct {
	refs  []string
	index map[string]struct{}
}

// NewReferenceSet returns a set holding refs. Blank references are ignored.
func NewReferenceSet(refs ...string) *ReferenceSet {
	s := &ReferenceSet{index: make(map[string]struct{}, len(refs))}
	for _, ref := range refs {
		s.Add(ref)
	}
	return s
}

// ReferencesFrom builds the set from the reference column of the expenses ledger, so an
// expense row and its reference are always persisted together.
func ReferencesFrom(expenses []*models.ExpenseEntry) *ReferenceSet {
	s := NewReferenceSet()
	for _, e := range expenses {
		s.Add(e.Reference)
	}
	return s
}

// Add inserts ref and reports whether it was new.
func (s *ReferenceSet) Add(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	if _, ok := s.index[ref]; ok {
		return false
	}
	s.index[ref] = struct{}{}
	s.refs = append(s.refs, ref)
	return true
}

// Covers returns the stored reference that covers ref under rule, if any.
func (s *ReferenceSet) Covers(ref string, rule Rule) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if _, ok := s.index[ref]; ok {
		return ref, true
	}
	if rule != RuleContains {
		return "", false
	}
	for _, stored := range s.refs {
		if strings.Contains(stored, ref) || strings.Contains(ref, stored) {
			return stored, true
		}
	}
	return "", false
}

// Contains reports whether ref is stored exactly.
func (s *ReferenceSet) Contains(ref string) bool {
	_, ok := s.index[strings.TrimSpace(ref)]
	return ok
}

// Clone returns an independent copy.
func (s *ReferenceSet) Clone() *ReferenceSet {
	c := &ReferenceSet{
		refs:  make([]string, len(s.refs)),
		index: make(map[string]struct{}, len(s.index)),
	}
	copy(c.refs, s.refs)
	for ref := range s.index {
		c.index[ref] = struct{}{}
	}
	return c
}

// Len returns the number of stored references.
func (s *ReferenceSet) Len() int {
	return len(s.refs)
}

// References returns the stored references in insertion order.
func (s *ReferenceSet) References() []string {
	out := make([]string, len(s.refs))
	copy(out, s.refs)
	return out
}
