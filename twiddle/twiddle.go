// Package twiddle computes the host copies of the twiddle tables the
// generated Stockham kernels read.
package twiddle

import (
	"math"
	"math/bits"
	"math/cmplx"
)

// root returns exp(-2*pi*i*num/den)
func root(num, den int) complex128 {
	// reduce first so large tables keep full accuracy
	num %= den
	theta := -2 * math.Pi * float64(num) / float64(den)
	return cmplx.Rect(1, theta)
}

func validRadices(n int, radices []int) bool {
	if n < 1 || len(radices) == 0 {
		return false
	}
	p := 1
	for _, r := range radices {
		if r < 2 {
			return false
		}
		p *= r
	}
	return p == n
}

// Size is the number of entries Table(n, ...) holds
func Size(n int) int {
	return n - 1
}

// Table builds the per-pass table for a length n transform factored into
// radices. The pass with stride Ns and radix R owns entries
// Ns-1 + k*(R-1) + (r-1) = exp(-2*pi*i*k*r/(Ns*R)) for k < Ns, 0 < r < R.
// Returns nil when the radices do not factor n.
func Table(n int, radices []int) []complex128 {
	if !validRadices(n, radices) {
		return nil
	}
	tw := make([]complex128, Size(n))
	ns := 1
	for _, r := range radices {
		for k := 0; k < ns; k++ {
			for j := 1; j < r; j++ {
				tw[ns-1+k*(r-1)+(j-1)] = root(k*j, ns*r)
			}
		}
		ns *= r
	}
	return tw
}

// Table2D builds the glued table of a fused 2D kernel: the first
// dimension's table followed by the second's, or one table when both
// dimensions are factored the same way.
func Table2D(n0 int, radices0 []int, n1 int, radices1 []int) []complex128 {
	t0 := Table(n0, radices0)
	if t0 == nil {
		return nil
	}
	if Shared2D(n0, radices0, n1, radices1) {
		return t0
	}
	t1 := Table(n1, radices1)
	if t1 == nil {
		return nil
	}
	return append(t0, t1...)
}

// Shared2D reports whether both passes of a 2D table read the same entries
func Shared2D(n0 int, radices0 []int, n1 int, radices1 []int) bool {
	if n0 != n1 || len(radices0) != len(radices1) {
		return false
	}
	for i := range radices0 {
		if radices0[i] != radices1[i] {
			return false
		}
	}
	return true
}

// LargeSteps returns how many base-2^base digits index a length n table
func LargeSteps(n, base int) int {
	if n <= 1 || base <= 0 {
		return 0
	}
	digits := bits.Len(uint(n - 1))
	return (digits + base - 1) / base
}

// Large builds the multi-step table of exp(-2*pi*i*idx/n). Entry
// s<<base + d holds the factor for digit d at step s, so the twiddle for
// idx is the product over steps of the entries picked by idx's digits.
func Large(n, base, steps int) []complex128 {
	if n < 1 || base <= 0 || steps <= 0 {
		return nil
	}
	width := 1 << base
	tw := make([]complex128, steps*width)
	for s := 0; s < steps; s++ {
		scale := 1 << (s * base)
		for d := 0; d < width; d++ {
			tw[s*width+d] = root(d*scale%n, n)
		}
	}
	return tw
}

// Interleaved32 flattens a table to re/im float32 pairs
func Interleaved32(tw []complex128) []float32 {
	out := make([]float32, 2*len(tw))
	for i, w := range tw {
		out[2*i], out[2*i+1] = float32(real(w)), float32(imag(w))
	}
	return out
}

// Interleaved64 flattens a table to re/im float64 pairs
func Interleaved64(tw []complex128) []float64 {
	out := make([]float64, 2*len(tw))
	for i, w := range tw {
		out[2*i], out[2*i+1] = real(w), imag(w)
	}
	return out
}
