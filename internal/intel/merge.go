package intel

// Merge returns the per-category union of a and b. Values are compared by
// exact string equality. Merge is commutative and idempotent.
func Merge(a, b Intelligence) Intelligence {
	out := Empty()
	dst := out.categories()
	as := a.categories()
	bs := b.categories()
	for i := range dst {
		joined := make([]string, 0, len(*as[i])+len(*bs[i]))
		joined = append(joined, *as[i]...)
		joined = append(joined, *bs[i]...)
		*dst[i] = uniq(joined)
	}
	return out
}

// Normalize returns in with every category deduplicated and sorted.
func Normalize(in Intelligence) Intelligence {
	return Merge(in, Intelligence{})
}
