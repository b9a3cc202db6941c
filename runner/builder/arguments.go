package builder

import (
	"fmt"
	"strings"
)

// ArgKind is the host-side representation of a kernel argument
type ArgKind int

const (
	PointerArg ArgKind = iota // device pointer
	SizeArg                   // 64-bit count, passed as int64
	UintArg                   // 32-bit unsigned, passed as uint32
)

// KernelArgument describes one parameter of a generated kernel
type KernelArgument struct {
	Name string
	Type string
	Kind ArgKind
}

// ArgLayout captures every switch that changes the argument list
type ArgLayout struct {
	LargeTwiddles bool // block column kernels take a second twiddle table
	DynamicDim    bool // dimension count is passed at runtime
	OutOfPlace    bool
	PlanarIn      bool
	PlanarOut     bool
}

// StockhamArguments returns the ordered argument list of a Stockham kernel.
// Generated signatures and launch-time marshaling must both follow it.
func StockhamArguments(l ArgLayout) []KernelArgument {
	args := []KernelArgument{{Name: "twiddles", Type: "const real2_t*", Kind: PointerArg}}
	if l.LargeTwiddles {
		args = append(args, KernelArgument{Name: "twiddles_large", Type: "const real2_t*", Kind: PointerArg})
	}
	if l.DynamicDim {
		args = append(args, KernelArgument{Name: "dim", Type: "const long", Kind: SizeArg})
	}
	args = append(args,
		KernelArgument{Name: "lengths", Type: "const long*", Kind: PointerArg},
		KernelArgument{Name: "stride_in", Type: "const long*", Kind: PointerArg},
	)
	if l.OutOfPlace {
		args = append(args, KernelArgument{Name: "stride_out", Type: "const long*", Kind: PointerArg})
	}
	args = append(args,
		KernelArgument{Name: "nbatch", Type: "const long", Kind: SizeArg},
		KernelArgument{Name: "lds_padding", Type: "const unsigned int", Kind: UintArg},
		KernelArgument{Name: "load_cb_fn", Type: "void*", Kind: PointerArg},
		KernelArgument{Name: "load_cb_data", Type: "void*", Kind: PointerArg},
		KernelArgument{Name: "load_cb_lds_bytes", Type: "const unsigned int", Kind: UintArg},
		KernelArgument{Name: "store_cb_fn", Type: "void*", Kind: PointerArg},
		KernelArgument{Name: "store_cb_data", Type: "void*", Kind: PointerArg},
	)
	args = append(args, bufferArguments("buf_in", l.PlanarIn)...)
	if l.OutOfPlace {
		args = append(args, bufferArguments("buf_out", l.PlanarOut)...)
	}
	return args
}

func bufferArguments(name string, planar bool) []KernelArgument {
	if planar {
		return []KernelArgument{
			{Name: name, Type: "real_t*", Kind: PointerArg},
			{Name: name + "_imag", Type: "real_t*", Kind: PointerArg},
		}
	}
	return []KernelArgument{{Name: name, Type: "real2_t*", Kind: PointerArg}}
}

// GenerateKernelSignature renders the parameter list for a kernel declaration
func GenerateKernelSignature(args []KernelArgument) string {
	params := make([]string, 0, len(args))
	for _, karg := range args {
		params = append(params, fmt.Sprintf("%s %s", karg.Type, karg.Name))
	}
	return strings.Join(params, ",\n\t")
}

// ArgumentNames lists the argument names in order
func ArgumentNames(args []KernelArgument) []string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name
	}
	return names
}
