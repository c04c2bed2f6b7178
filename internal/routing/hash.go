package routing

// WeakHash computes the routing hash spec.md §4.3 requires for key→Bucket
// placement: a sum of character codes seeded at 17, left to wrap around on
// Go's native int32 overflow semantics exactly like the unchecked
// arithmetic the algorithm calls for. Being a plain sum, it ignores
// character order (anagrams such as "ab" and "ba" hash alike) and is
// collision-prone — see DESIGN.md for why this is kept
// instead of substituting a stronger hash (cespare/xxhash, used elsewhere
// in this module for connection-id derivation, is not used here: doing so
// would change key→Bucket placement and break the on-the-wire routing
// parity spec.md §9 calls out).
func WeakHash(s string) int32 {
	h := int32(17) //nolint:mnd

	for i := range len(s) {
		h += int32(s[i])
	}

	return h
}

// bucketIndex maps a hash to a Bucket position via |h| mod n, per spec.md
// §4.3 step 3. The absolute value is taken in int64 to avoid the int32
// overflow that negating math.MinInt32 would otherwise hit.
func bucketIndex(h int32, n int) int {
	v := int64(h)
	if v < 0 {
		v = -v
	}

	return int(v % int64(n))
}
