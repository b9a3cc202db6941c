package builder

import "github.com/notargets/FFTKernel/fft"

// RealTypeName returns the C type name of one real component
func RealTypeName(p fft.Precision) string {
	if p == fft.Single {
		return "float"
	}
	return "double"
}

// ComplexTypeName returns the C vector type holding one complex value
func ComplexTypeName(p fft.Precision) string {
	if p == fft.Single {
		return "float2"
	}
	return "double2"
}

// TypeSuffix returns the numeric suffix for floating point literals
func TypeSuffix(p fft.Precision) string {
	if p == fft.Single {
		return "f"
	}
	return ""
}

// ComplexSize is the size in bytes of one complex value
func ComplexSize(p fft.Precision) int64 {
	if p == fft.Single {
		return 8
	}
	return 16
}
