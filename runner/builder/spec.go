package builder

import (
	"slices"

	"github.com/notargets/FFTKernel/fft"
)

// StockhamSpec is the normalized kernel description the source generator
// works from: catalog data plus what the node adds to it.
type StockhamSpec struct {
	Factors      []int
	OtherFactors []int // factors of the fused second dimension, if any
	Precisions   []fft.Precision

	WorkgroupSize       int
	Scheme              string
	ThreadsPerTransform int
	HalfLDS             bool
	DirectToFromReg     bool

	// StaticDim is the dimension count baked into the kernel. 0 means the
	// dimension count is a runtime argument.
	StaticDim int
}

// Clone returns a deep copy
func (s StockhamSpec) Clone() StockhamSpec {
	c := s
	c.Factors = slices.Clone(s.Factors)
	c.OtherFactors = slices.Clone(s.OtherFactors)
	c.Precisions = slices.Clone(s.Precisions)
	return c
}

// StockhamParams is an owned snapshot of everything about a node that
// shows up in a kernel's name or source
type StockhamParams struct {
	Scheme    fft.Scheme
	Length0   int
	Length1   int // second length, 2D kernels only
	StaticDim int

	Direction    fft.Direction
	Precision    fft.Precision
	Placement    fft.Placement
	InArrayType  fft.ArrayType
	OutArrayType fft.ArrayType
	UnitStride   bool

	LargeTwdBase  int
	LargeTwdSteps int

	EmbeddedType  fft.EmbeddedType
	DirReg        fft.DirRegMode
	IntrinsicMode fft.IntrinsicMode
	Transpose     fft.TransposeType

	EnableCallbacks bool
	EnableScaling   bool
	ScaleFactor     float64
}

// Layout returns the argument layout a kernel built from p expects
func (p StockhamParams) Layout() ArgLayout {
	return ArgLayout{
		LargeTwiddles: p.Scheme == fft.KernelStockhamBlockCC,
		DynamicDim:    p.StaticDim == 0,
		OutOfPlace:    p.Placement == fft.NotInPlace,
		PlanarIn:      p.InArrayType.IsPlanar(),
		PlanarOut:     p.OutArrayType.IsPlanar(),
	}
}

// blockRC is true for the block row/column kernel and its transposing
// variants, which share one catalog scheme
func (p StockhamParams) blockRC() bool {
	canonical, _ := p.Scheme.Canonical()
	return canonical == fft.KernelStockhamBlockRC
}
