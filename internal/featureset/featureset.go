// Package featureset provides the canonical representation of one build
// configuration: a sorted, deduplicated, immutable set of feature names.
package featureset

import (
	"slices"
	"strings"
)

// Set is an immutable collection of feature names. The zero value is the
// empty set. Names are kept sorted and deduplicated, so two sets compare
// equal iff their member sequences are equal.
type Set struct {
	names []string
}

// New builds a Set from the given names, dropping duplicates and empty
// strings. The input slice is not retained.
func New(names ...string) Set {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return Set{names: slices.Compact(out)}
}

// Len returns the number of features in the set.
func (s Set) Len() int { return len(s.names) }

// Names returns a copy of the sorted member names.
func (s Set) Names() []string {
	return slices.Clone(s.names)
}

// Contains reports whether name is a member of the set.
func (s Set) Contains(name string) bool {
	_, ok := slices.BinarySearch(s.names, name)
	return ok
}

// SubsetOf reports whether every member of s is also a member of other.
// The empty set is a subset of every set.
func (s Set) SubsetOf(other Set) bool {
	for _, n := range s.names {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Union returns a new set with the members of both s and other.
func (s Set) Union(other Set) Set {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	return New(append(s.Names(), other.names...)...)
}

// Filter returns a new set holding only the members for which keep
// returns true.
func (s Set) Filter(keep func(name string) bool) Set {
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if keep(n) {
			out = append(out, n)
		}
	}
	return Set{names: out}
}

// Compare orders sets lexicographically over their sorted member lists,
// which is also the canonical output ordering for generated combinations.
func (s Set) Compare(other Set) int {
	return slices.Compare(s.names, other.names)
}

// Equal reports whether both sets have the same members.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.names, other.names)
}

// String renders the set as a comma-joined list, the form cargo expects
// in --features=<list>. The empty set renders as "".
func (s Set) String() string {
	return strings.Join(s.names, ",")
}

// List renders the set for human-readable output, joined with ", ".
func (s Set) List() string {
	return strings.Join(s.names, ", ")
}
