package fft

// KernArgs holds the device copies of a node's length and stride tables.
// Stride tables carry one extra trailing entry: the batch distance.
type KernArgs struct {
	Lengths   DevicePtr
	StrideIn  DevicePtr
	StrideOut DevicePtr
}

// Node is one kernel invocation of an execution plan
type Node struct {
	Scheme    Scheme
	Length    []int // Length[0] is the transformed dimension
	Precision Precision
	Direction Direction
	Placement Placement

	InArrayType  ArrayType
	OutArrayType ArrayType
	InStride     []int
	OutStride    []int
	IDist        int
	ODist        int
	Batch        int

	// Large twiddle decomposition for block column kernels
	LargeTwdBase  int
	LargeTwdSteps int

	EmbeddedType  EmbeddedType
	DirReg        DirRegMode
	IntrinsicMode IntrinsicMode

	// ScaleFactor multiplies the output. 0 and 1 both mean "no scaling".
	ScaleFactor float64
	LDSPadding  int

	// Device state, filled in when the execution plan is built
	Twiddles      DevicePtr
	TwiddlesLarge DevicePtr
	DevKernArg    KernArgs
}

// IsScalingEnabled reports whether the node applies a scale factor on output
func (n *Node) IsScalingEnabled() bool {
	return n.ScaleFactor != 0 && n.ScaleFactor != 1
}

// Dim is the number of dimensions of the node
func (n *Node) Dim() int {
	return len(n.Length)
}

func (n *Node) lengthAt(i int) int {
	if i < len(n.Length) {
		return n.Length[i]
	}
	return 1
}

// SBRCTransposeType picks the tile traversal for block row/column kernels
// given the block width recorded in the catalog.
func (n *Node) SBRCTransposeType(blockWidth int) TransposeType {
	alignDim := n.lengthAt(1)
	if n.Scheme == KernelStockhamTransposeXYZ {
		alignDim = n.lengthAt(2)
	}
	if blockWidth <= 0 || alignDim%blockWidth != 0 {
		return TransposeTileUnaligned
	}
	// square power-of-two tiles would hit the same memory channels in
	// lock step, so walk them diagonally
	if n.Scheme == KernelStockhamBlockRC && n.lengthAt(0) == alignDim &&
		alignDim >= 256 && alignDim&(alignDim-1) == 0 {
		return TransposeDiagonal
	}
	return TransposeTileAligned
}

// UnitStride is true when both leading strides are one
func (n *Node) UnitStride() bool {
	return len(n.InStride) > 0 && len(n.OutStride) > 0 &&
		n.InStride[0] == 1 && n.OutStride[0] == 1
}

// TransformCount is the number of independent transforms the node performs
func (n *Node) TransformCount() int {
	count := n.Batch
	if count < 1 {
		count = 1
	}
	for i := 1; i < len(n.Length); i++ {
		count *= n.Length[i]
	}
	return count
}
