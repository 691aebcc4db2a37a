// SPDX-License-Identifier: MIT

// Package bitint holds the power-of-two helpers used to size analysis
// windows. Real-input transforms accept any positive length but run fastest
// when the length factors into small primes, powers of two being the common
// choice, so configuration code uses these to validate and suggest sizes.
//
// All functions are constant time and allocation free.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
//
// size-1 is taken before measuring the bit length so that exact powers of
// two map to themselves:
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of two <= size, or 0 when size is
// not positive.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NearestPowerOfTwo returns whichever of PrevPowerOfTwo and NextPowerOfTwo is
// closer to n, preferring the larger one on a tie.
func NearestPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	lo, hi := PrevPowerOfTwo(n), NextPowerOfTwo(n)
	if n-lo < hi-n {
		return lo
	}
	return hi
}
