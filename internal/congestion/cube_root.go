package congestion

// cubeRoot computes the integer cube root of the radicand, one bit of the
// result per iteration.
func cubeRoot(radicand uint64) uint64 {
	var x uint64
	for s := 63; s >= 0; s -= 3 {
		x <<= 1
		b := 3*x*(x+1) + 1
		if (radicand >> uint(s)) >= b {
			radicand -= b << uint(s)
			x++
		}
	}
	return x
}
