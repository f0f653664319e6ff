package core

import (
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// newID returns a time-based (version 1) UUID string.
func newID() string {
	return uuid.Must(uuid.NewUUID()).String()
}

// IDSet is an unordered set of identifiers or tags. Its slice form is sorted
// so records serialize deterministically.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids, dropping blanks and duplicates.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members in sorted order.
func (s IDSet) Slice() []string {
	return slices.Sorted(maps.Keys(s))
}

// Union returns a new set holding the members of both sets.
func (s IDSet) Union(other IDSet) IDSet {
	out := maps.Clone(s)
	if out == nil {
		out = IDSet{}
	}
	maps.Copy(out, other)
	return out
}

// SubsetOf reports whether every member of s is a key accepted by has.
func (s IDSet) SubsetOf(has func(string) bool) bool {
	for id := range s {
		if !has(id) {
			return false
		}
	}
	return true
}

// replace swaps current for replacement. Collapsing into an existing member
// is implicit. A blank replacement leaves the set unchanged.
func (s IDSet) replace(current, replacement string) {
	replacement = strings.TrimSpace(replacement)
	if replacement == "" || !s.Has(current) {
		return
	}
	delete(s, current)
	s.Add(replacement)
}

func (s IDSet) clone() IDSet {
	out := maps.Clone(s)
	if out == nil {
		out = IDSet{}
	}
	return out
}
