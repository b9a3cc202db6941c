package fft

import "fmt"

// Scheme identifies the kernel algorithm a tree node is computed with
type Scheme int

const (
	SchemeNone Scheme = iota
	KernelStockham
	KernelStockhamBlockCC
	KernelStockhamBlockRC
	KernelStockhamBlockCR
	KernelStockhamTransposeXYZ
	KernelStockhamTransposeZXY
	KernelStockhamR2CTransposeZXY
	Kernel2DSingle
	KernelTranspose
	KernelR2CPost
	KernelC2RPre
)

var schemeNames = map[Scheme]string{
	SchemeNone:                    "none",
	KernelStockham:                "stockham",
	KernelStockhamBlockCC:         "sbcc",
	KernelStockhamBlockRC:         "sbrc",
	KernelStockhamBlockCR:         "sbcr",
	KernelStockhamTransposeXYZ:    "sbrc_xy_z",
	KernelStockhamTransposeZXY:    "sbrc_z_xy",
	KernelStockhamR2CTransposeZXY: "sbrc_erc_z_xy",
	Kernel2DSingle:                "2d_single",
	KernelTranspose:               "transpose",
	KernelR2CPost:                 "r2c_post",
	KernelC2RPre:                  "c2r_pre",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

// ParseScheme is the inverse of String
func ParseScheme(name string) (Scheme, error) {
	for s, n := range schemeNames {
		if n == name {
			return s, nil
		}
	}
	return SchemeNone, fmt.Errorf("unknown scheme %q", name)
}

// Schemes lists every scheme in declaration order
func Schemes() []Scheme {
	return []Scheme{
		SchemeNone, KernelStockham, KernelStockhamBlockCC, KernelStockhamBlockRC,
		KernelStockhamBlockCR, KernelStockhamTransposeXYZ, KernelStockhamTransposeZXY,
		KernelStockhamR2CTransposeZXY, Kernel2DSingle, KernelTranspose,
		KernelR2CPost, KernelC2RPre,
	}
}

// Canonical maps a scheme to the form stored in the kernel catalog. The 3D
// transpose-fused variants are catalogued under the plain block row/column
// scheme; remapped reports whether that happened.
func (s Scheme) Canonical() (canonical Scheme, remapped bool) {
	switch s {
	case KernelStockhamTransposeXYZ, KernelStockhamTransposeZXY, KernelStockhamR2CTransposeZXY:
		return KernelStockhamBlockRC, true
	default:
		return s, false
	}
}

// IsStockham is true for every scheme the Stockham generator can emit
func (s Scheme) IsStockham() bool {
	switch s {
	case KernelStockham, KernelStockhamBlockCC, KernelStockhamBlockRC, KernelStockhamBlockCR,
		KernelStockhamTransposeXYZ, KernelStockhamTransposeZXY, KernelStockhamR2CTransposeZXY,
		Kernel2DSingle:
		return true
	default:
		return false
	}
}

// OutputDims returns, for each logical dimension of a node, the output
// stride slot it is written through. Transposing schemes rotate the slots.
func (s Scheme) OutputDims() []int {
	switch s {
	case KernelStockhamBlockRC:
		return []int{1, 0, 2}
	case KernelStockhamTransposeXYZ:
		return []int{2, 0, 1}
	case KernelStockhamTransposeZXY, KernelStockhamR2CTransposeZXY:
		return []int{1, 2, 0}
	default:
		return []int{0, 1, 2}
	}
}
