// Package cmp has comparators used mostly by tests.
package cmp

type BiPredicator[A any, B any] func(a A, b B) bool

// a == b as BiPredicator
func EqEq[T comparable](a, b T) bool {
	return a == b
}

// *a == *b as BiPredicator. Two nils are equal.
func PEqEq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
