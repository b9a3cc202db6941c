package builder

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/FFTKernel/fft"
)

var schemeTags = map[fft.Scheme]string{
	fft.KernelStockhamBlockCC:         "_sbcc",
	fft.KernelStockhamBlockRC:         "_sbrc",
	fft.KernelStockhamBlockCR:         "_sbcr",
	fft.KernelStockhamTransposeXYZ:    "_sbrc_xy_z",
	fft.KernelStockhamTransposeZXY:    "_sbrc_z_xy",
	fft.KernelStockhamR2CTransposeZXY: "_sbrc_erc_z_xy",
	fft.Kernel2DSingle:                "_2d",
}

// StockhamKernelName builds the identifying name of a specialized kernel.
// The name doubles as the compiled artifact cache key, so every parameter
// that changes the generated source must appear in it.
func StockhamKernelName(p StockhamParams) string {
	var sb strings.Builder
	sb.WriteString("fft_rtc")
	if p.Direction == fft.Backward {
		sb.WriteString("_back")
	} else {
		sb.WriteString("_fwd")
	}

	fmt.Fprintf(&sb, "_len%d", p.Length0)
	if p.Scheme == fft.Kernel2DSingle {
		fmt.Fprintf(&sb, "x%d", p.Length1)
	}
	if p.StaticDim != 0 {
		fmt.Fprintf(&sb, "_dim%d", p.StaticDim)
	}

	if p.Precision == fft.Single {
		sb.WriteString("_sp")
	} else {
		sb.WriteString("_dp")
	}
	if p.Placement == fft.InPlace {
		sb.WriteString("_ip")
	} else {
		sb.WriteString("_op")
	}
	fmt.Fprintf(&sb, "_%s_%s", p.InArrayType.Tag(), p.OutArrayType.Tag())

	sb.WriteString(schemeTags[p.Scheme])
	if p.UnitStride {
		sb.WriteString("_unitstride")
	}
	if p.blockRC() && p.Transpose != fft.TransposeNone {
		sb.WriteString("_" + p.Transpose.String())
	}

	if p.LargeTwdSteps > 0 {
		fmt.Fprintf(&sb, "_twdbase%d_%dstep", p.LargeTwdBase, p.LargeTwdSteps)
	}
	switch p.EmbeddedType {
	case fft.EmbeddedR2CPost:
		sb.WriteString("_postfix")
	case fft.EmbeddedC2RPre:
		sb.WriteString("_prefix")
	}
	if p.DirReg == fft.DirRegOn {
		sb.WriteString("_dirReg")
	}
	switch p.IntrinsicMode {
	case fft.IntrinsicBufferLoad:
		sb.WriteString("_intrinsicRead")
	case fft.IntrinsicBufferLoadStore:
		sb.WriteString("_intrinsicReadWrite")
	}

	if p.EnableCallbacks {
		sb.WriteString("_CB")
	}
	if p.EnableScaling {
		// exact bits, so two scales never collide on a rounded decimal
		fmt.Fprintf(&sb, "_scale%016x", math.Float64bits(p.ScaleFactor))
	}
	return sb.String()
}
