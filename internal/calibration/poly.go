package calibration

// polyTerms lists the feature index multisets for every polynomial term of
// degree 1..degree over n features, in lexicographic order. There is no bias
// term.
func polyTerms(n, degree int) [][]int {
	var terms [][]int
	for k := 1; k <= degree; k++ {
		combo := make([]int, k)
		var walk func(pos, from int)
		walk = func(pos, from int) {
			if pos == k {
				terms = append(terms, append([]int(nil), combo...))
				return
			}
			for i := from; i < n; i++ {
				combo[pos] = i
				walk(pos+1, i)
			}
		}
		walk(0, 0)
	}
	return terms
}

// expand evaluates every term over the standardized vector z into dst.
func expand(dst, z []float64, terms [][]int) []float64 {
	dst = dst[:0]
	for _, t := range terms {
		v := 1.0
		for _, i := range t {
			v *= z[i]
		}
		dst = append(dst, v)
	}
	return dst
}
