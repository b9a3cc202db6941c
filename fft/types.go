package fft

import "fmt"

// Precision represents the floating point precision of a transform
type Precision int

const (
	Single Precision = iota + 1
	Double
)

func (p Precision) String() string {
	switch p {
	case Single:
		return "single"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("Precision(%d)", int(p))
	}
}

// ParsePrecision accepts "single"/"sp" and "double"/"dp"
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "single", "sp", "float":
		return Single, nil
	case "double", "dp":
		return Double, nil
	}
	return 0, fmt.Errorf("unknown precision %q", s)
}

// Direction of the transform. Forward uses exp(-2*pi*i*k/N)
type Direction int

const (
	Forward  Direction = -1
	Backward Direction = 1
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Placement tells whether a kernel writes back into its input buffer
type Placement int

const (
	InPlace Placement = iota + 1
	NotInPlace
)

func (p Placement) String() string {
	if p == InPlace {
		return "inplace"
	}
	return "notinplace"
}

// ArrayType describes the memory layout of a buffer
type ArrayType int

const (
	ComplexInterleaved ArrayType = iota + 1
	ComplexPlanar
	Real
	HermitianInterleaved
	HermitianPlanar
)

// IsPlanar is true when real and imaginary parts live in separate buffers
func (a ArrayType) IsPlanar() bool {
	return a == ComplexPlanar || a == HermitianPlanar
}

// Tag returns the short form used in kernel names
func (a ArrayType) Tag() string {
	switch a {
	case ComplexInterleaved:
		return "CI"
	case ComplexPlanar:
		return "CP"
	case Real:
		return "R"
	case HermitianInterleaved:
		return "HI"
	case HermitianPlanar:
		return "HP"
	default:
		return "NA"
	}
}

// TransposeType selects the tile traversal of fused row/column kernels
type TransposeType int

const (
	TransposeNone TransposeType = iota
	TransposeDiagonal
	TransposeTileAligned
	TransposeTileUnaligned
)

func (t TransposeType) String() string {
	switch t {
	case TransposeDiagonal:
		return "diag"
	case TransposeTileAligned:
		return "aligned"
	case TransposeTileUnaligned:
		return "unaligned"
	default:
		return "none"
	}
}

// EmbeddedType marks real-data pre/post processing fused into a kernel
type EmbeddedType int

const (
	EmbeddedNone EmbeddedType = iota
	EmbeddedR2CPost
	EmbeddedC2RPre
)

// DirRegMode controls whether a kernel loads/stores directly through registers
type DirRegMode int

const (
	DirRegOff DirRegMode = iota
	DirRegOn
)

// IntrinsicMode selects buffer-intrinsic memory access in generated code
type IntrinsicMode int

const (
	IntrinsicNone IntrinsicMode = iota
	IntrinsicBufferLoad
	IntrinsicBufferLoadStore
)

// DevicePtr is an opaque device pointer handed to a kernel launch, typically
// a *gocca.OCCAMemory. A nil value means "no buffer".
type DevicePtr = interface{}
