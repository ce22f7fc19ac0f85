package iso

import "sort"

// Deeper reports whether tile (ai, aj) lies farther from the viewer than
// (bi, bj) and must therefore be drawn first. Larger (i + j) is farther.
func Deeper(ai, aj, bi, bj int) bool {
	return ai+aj > bi+bj
}

// BackToFront sorts drawable items into painting order using Deeper. The
// sort is stable so items on the same depth row keep their relative order.
func BackToFront[T any](items []T, at func(T) (i, j int)) {
	sort.SliceStable(items, func(a, b int) bool {
		ai, aj := at(items[a])
		bi, bj := at(items[b])
		return Deeper(ai, aj, bi, bj)
	})
}
