package ds

import "fmt"

// Set is an ordered set with O(1) membership testing and insertion-order
// iteration, so diffs between successive classification rounds are
// deterministic.
//
// Add, Remove and Clear mutate the receiver; Copy, Additions, Removals and
// Diff return new sets.
type Set[T comparable] struct {
	items map[T]struct{}
	order []T
}

func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{items: map[T]struct{}{}}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s *Set[T]) String() string { return fmt.Sprintf("%v", s.order) }

func (s *Set[T]) Len() int { return len(s.items) }

func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

// Add inserts v. No-op if already present.
func (s *Set[T]) Add(v T) {
	if s.Contains(v) {
		return
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
}

// Remove deletes v, preserving the order of the remaining elements.
func (s *Set[T]) Remove(v T) {
	if !s.Contains(v) {
		return
	}
	delete(s.items, v)
	for i, o := range s.order {
		if o == v {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Values returns the elements in insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set[T]) Clear() {
	s.items = map[T]struct{}{}
	s.order = nil
}

func (s *Set[T]) Copy() *Set[T] { return NewSet(s.order...) }

// Additions returns the elements of other not present in s.
func (s *Set[T]) Additions(other *Set[T]) *Set[T] {
	out := NewSet[T]()
	for _, v := range other.order {
		if !s.Contains(v) {
			out.Add(v)
		}
	}
	return out
}

// Removals returns the elements of s not present in other.
func (s *Set[T]) Removals(other *Set[T]) *Set[T] {
	return other.Additions(s)
}

// Diff returns the symmetric difference of s and other.
func (s *Set[T]) Diff(other *Set[T]) *Set[T] {
	out := s.Additions(other)
	for _, v := range s.Removals(other).Values() {
		out.Add(v)
	}
	return out
}
