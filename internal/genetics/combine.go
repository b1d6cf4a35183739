package genetics

import "kittycore/pkg/domain"

// Combine merges two parent codes. Where a mask bit is 1 the child copies the
// bit from a, where it is 0 the bit comes from b.
func Combine(a, b, mask domain.DNA) domain.DNA {
	var child domain.DNA
	for i := range child {
		child[i] = combineByte(a[i], b[i], mask[i])
	}
	return child
}

func combineByte(a, b, mask byte) byte {
	return (mask & a) | (^mask & b)
}
