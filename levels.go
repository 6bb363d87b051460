package flame

import "math"

// ComposedCount returns n^depth, the number of compositions visited by
// ProcessLevels. ok is false when the count overflows int.
func ComposedCount(n, depth int) (count int, ok bool) {
	count = 1
	for range depth {
		if n != 0 && count > math.MaxInt/n {
			return 0, false
		}
		count *= n
	}
	return count, true
}

// ProcessLevels calls fn for every composition t_jd * ... * t_j1 * root of
// depth maps from set, in lexicographic order of (j1, ..., jd). Depth 0
// visits root alone.
func ProcessLevels(set *TransformSet, root Affine, depth int, fn func(Affine)) {
	if depth <= 0 {
		fn(root)
		return
	}
	for _, t := range set.transforms {
		ProcessLevels(set, t.Multiply(root), depth-1, fn)
	}
}

// ComposeLevels collects the compositions visited by ProcessLevels.
func ComposeLevels(set *TransformSet, root Affine, depth int) []Affine {
	n, ok := ComposedCount(set.Len(), depth)
	if !ok {
		n = 0
	}
	out := make([]Affine, 0, n)
	ProcessLevels(set, root, depth, func(m Affine) {
		out = append(out, m)
	})
	return out
}
