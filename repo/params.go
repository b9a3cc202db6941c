package repo

import "github.com/notargets/FFTKernel/fft"

// MaxRank is the highest transform dimensionality a plan can describe
const MaxRank = 3

// Params are the structural parameters of a plan. Two plans with equal
// Params on the same device share one execution plan. Arrays instead of
// slices keep the struct comparable so it can key a map.
type Params struct {
	Rank         int
	Lengths      [MaxRank]int
	Precision    fft.Precision
	Direction    fft.Direction
	Placement    fft.Placement
	InArrayType  fft.ArrayType
	OutArrayType fft.ArrayType
	InStrides    [MaxRank]int
	OutStrides   [MaxRank]int
	InDist       int
	OutDist      int
	Batch        int
	ScaleFactor  float64
}

// Normalized fills in zero strides and distances contiguously along with
// batch 1, unit scale and the default enum values, so equivalent plans
// compare equal.
func (p Params) Normalized() Params {
	n := p
	if n.Batch < 1 {
		n.Batch = 1
	}
	if n.Direction == 0 {
		n.Direction = fft.Forward
	}
	if n.Placement == 0 {
		n.Placement = fft.InPlace
	}
	if n.InArrayType == 0 {
		n.InArrayType = fft.ComplexInterleaved
	}
	if n.OutArrayType == 0 {
		n.OutArrayType = n.InArrayType
	}
	if n.ScaleFactor == 0 {
		n.ScaleFactor = 1
	}
	// a zero stride continues contiguously from the dimension below it
	fill := func(strides *[MaxRank]int, dist *int) {
		s := 1
		for d := 0; d < n.Rank; d++ {
			if strides[d] == 0 {
				strides[d] = s
			}
			s = strides[d] * n.Lengths[d]
		}
		if *dist == 0 {
			*dist = n.elements(strides)
		}
	}
	fill(&n.InStrides, &n.InDist)
	fill(&n.OutStrides, &n.OutDist)
	for d := n.Rank; d < MaxRank; d++ {
		n.Lengths[d], n.InStrides[d], n.OutStrides[d] = 0, 0, 0
	}
	return n
}

// elements is the span of one transform given the strides
func (p Params) elements(strides *[MaxRank]int) int {
	span := 1
	for d := 0; d < p.Rank; d++ {
		span += (p.Lengths[d] - 1) * strides[d]
	}
	return span
}

// LengthSlice returns the used lengths
func (p Params) LengthSlice() []int {
	return append([]int(nil), p.Lengths[:p.Rank]...)
}

// Descriptor is the deduplication key: plan shape plus the device the plan
// lives on. Execution plans own device buffers, so they are per device.
type Descriptor struct {
	Params   Params
	DeviceID int
}

// Plan is the handle a caller holds for one created plan
type Plan struct {
	desc Descriptor
}

// NewPlan creates a handle for the normalized descriptor
func NewPlan(params Params, deviceID int) *Plan {
	return &Plan{desc: Descriptor{Params: params.Normalized(), DeviceID: deviceID}}
}

// Descriptor returns the structural key of the plan
func (p *Plan) Descriptor() Descriptor {
	return p.desc
}
