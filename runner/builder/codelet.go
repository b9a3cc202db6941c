package builder

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/FFTKernel/fft"
)

// codeletName is the device function computing one radix-r DFT in place
func codeletName(radix int, dir fft.Direction) string {
	if dir == fft.Backward {
		return fmt.Sprintf("dft_back_%d", radix)
	}
	return fmt.Sprintf("dft_fwd_%d", radix)
}

// literal formats a constant for generated source
func literal(v float64, prec fft.Precision) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%.17e%s", v, TypeSuffix(prec))
}

// generateCodelet emits a direct DFT over v[0..radix). Every root of unity
// is folded into a literal at generation time.
func generateCodelet(radix int, dir fft.Direction, prec fft.Precision) string {
	var sb strings.Builder
	sign := float64(dir)

	fmt.Fprintf(&sb, "void %s(real2_t* v) {\n", codeletName(radix, dir))
	for r := 0; r < radix; r++ {
		fmt.Fprintf(&sb, "  const real2_t x%d = v[%d];\n", r, r)
	}
	for k := 0; k < radix; k++ {
		var re, im []string
		for r := 0; r < radix; r++ {
			idx := (r * k) % radix
			if idx == 0 {
				re = append(re, fmt.Sprintf("x%d.x", r))
				im = append(im, fmt.Sprintf("x%d.y", r))
				continue
			}
			theta := sign * 2 * math.Pi * float64(idx) / float64(radix)
			c, s := literal(math.Cos(theta), prec), literal(math.Sin(theta), prec)
			// (x + iy)(c + is) = (xc - ys) + i(xs + yc)
			re = append(re, fmt.Sprintf("(x%d.x*%s - x%d.y*%s)", r, c, r, s))
			im = append(im, fmt.Sprintf("(x%d.x*%s + x%d.y*%s)", r, s, r, c))
		}
		fmt.Fprintf(&sb, "  v[%d].x = %s;\n", k, strings.Join(re, " + "))
		fmt.Fprintf(&sb, "  v[%d].y = %s;\n", k, strings.Join(im, " + "))
	}
	sb.WriteString("}\n")
	return sb.String()
}

// uniqueRadices returns the sorted distinct factors of all specs
func uniqueRadices(specs ...StockhamSpec) []int {
	seen := make(map[int]bool)
	var out []int
	for _, s := range specs {
		for _, f := range append(append([]int(nil), s.Factors...), s.OtherFactors...) {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Ints(out)
	return out
}
