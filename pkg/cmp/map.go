package cmp

// MapEq checks a and b have the same keys and values.
func MapEq[K, V comparable](a, b map[K]V) bool {
	return MapEqWith(a, b, EqEq[V])
}

// MapEqWith checks a and b have the same keys, and pred holds for values of each key.
func MapEqWith[K comparable, A, B any](a map[K]A, b map[K]B, pred BiPredicator[A, B]) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !pred(va, vb) {
			return false
		}
	}
	return true
}
