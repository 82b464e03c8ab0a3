package cmp

func SliceEq[T comparable](a, b []T) bool {
	return SliceEqWith(a, b, EqEq[T])
}

// SliceEqWith checks a and b have the same length and pred holds for each pair at the same index.
func SliceEqWith[A, B any](a []A, b []B, pred BiPredicator[A, B]) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pred(a[i], b[i]) {
			return false
		}
	}
	return true
}

// SliceContentEq checks a and b have the same elements, ignoring ordering.
//
//	SliceContentEq([]string{"a", "b"}, []string{"b", "a"})      // => true
//	SliceContentEq([]string{"a", "a"}, []string{"a"})           // => false
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, EqEq[T])
}

// SliceContentEqWith is SliceContentEq with an equivalence.
//
// Each element of b is matched to at most one element of a.
func SliceContentEqWith[A, B any](a []A, b []B, equiv BiPredicator[A, B]) bool {
	if len(a) != len(b) {
		return false
	}

	used := make([]bool, len(b))
NEXT_A:
	for _, va := range a {
		for i, vb := range b {
			if used[i] || !equiv(va, vb) {
				continue
			}
			used[i] = true
			continue NEXT_A
		}
		return false
	}
	return true
}
