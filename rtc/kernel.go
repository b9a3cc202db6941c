package rtc

import (
	"fmt"

	"github.com/notargets/FFTKernel/fft"
)

// CompiledKernel is a kernel loaded on a device
type CompiledKernel interface {
	RunWithArgs(args ...interface{}) error
	Free()
}

// Callbacks are the user load/store hooks handed to every launch
type Callbacks struct {
	LoadFn       fft.DevicePtr
	LoadData     fft.DevicePtr
	LoadLDSBytes uint32
	StoreFn      fft.DevicePtr
	StoreData    fft.DevicePtr
}

// DeviceCallIn is the live state of one kernel launch. BufIn[1] and
// BufOut[1] hold the imaginary parts of planar buffers.
type DeviceCallIn struct {
	Node      *fft.Node
	BufIn     [2]fft.DevicePtr
	BufOut    [2]fft.DevicePtr
	Callbacks Callbacks
}

// KernelArgs is an ordered argument buffer. Names run parallel to values
// so tests and diagnostics can check the layout.
type KernelArgs struct {
	values []interface{}
	names  []string
}

func (a *KernelArgs) append(name string, v interface{}) {
	a.names = append(a.names, name)
	a.values = append(a.values, v)
}

// Values returns the arguments in launch order
func (a *KernelArgs) Values() []interface{} { return a.values }

// Names returns the argument names in launch order
func (a *KernelArgs) Names() []string { return a.names }

// Len is the number of arguments
func (a *KernelArgs) Len() int { return len(a.values) }

// StockhamKernel is a loaded Stockham kernel, precompiled or specialized
type StockhamKernel struct {
	Name         string
	kernel       CompiledKernel
	hardcodedDim bool
}

// NewStockhamKernel wraps a compiled kernel. hardcodedDim is false when the
// kernel takes the dimension count as an argument.
func NewStockhamKernel(name string, compiled CompiledKernel, hardcodedDim bool) *StockhamKernel {
	return &StockhamKernel{Name: name, kernel: compiled, hardcodedDim: hardcodedDim}
}

// HardcodedDim reports whether the dimension count is baked into the source
func (k *StockhamKernel) HardcodedDim() bool { return k.hardcodedDim }

// LaunchArgs marshals the launch arguments. The order has to match the
// kernel signature exactly; builder.StockhamArguments is the other half of
// that contract.
func (k *StockhamKernel) LaunchArgs(data *DeviceCallIn) *KernelArgs {
	node := data.Node
	notInPlace := node.Placement == fft.NotInPlace
	args := &KernelArgs{}

	args.append("twiddles", node.Twiddles)
	if node.Scheme == fft.KernelStockhamBlockCC {
		args.append("twiddles_large", node.TwiddlesLarge)
	}
	if !k.hardcodedDim {
		args.append("dim", int64(node.Dim()))
	}
	args.append("lengths", node.DevKernArg.Lengths)
	args.append("stride_in", node.DevKernArg.StrideIn)
	if notInPlace {
		args.append("stride_out", node.DevKernArg.StrideOut)
	}
	args.append("nbatch", int64(node.Batch))
	args.append("lds_padding", uint32(node.LDSPadding))

	cb := data.Callbacks
	args.append("load_cb_fn", cb.LoadFn)
	args.append("load_cb_data", cb.LoadData)
	args.append("load_cb_lds_bytes", cb.LoadLDSBytes)
	args.append("store_cb_fn", cb.StoreFn)
	args.append("store_cb_data", cb.StoreData)

	args.append("buf_in", data.BufIn[0])
	if node.InArrayType.IsPlanar() {
		args.append("buf_in_imag", data.BufIn[1])
	}
	if notInPlace {
		args.append("buf_out", data.BufOut[0])
		if node.OutArrayType.IsPlanar() {
			args.append("buf_out_imag", data.BufOut[1])
		}
	}
	return args
}

// Launch runs the kernel for one call
func (k *StockhamKernel) Launch(data *DeviceCallIn) error {
	if k.kernel == nil {
		return fmt.Errorf("kernel %s is not loaded", k.Name)
	}
	if err := k.kernel.RunWithArgs(k.LaunchArgs(data).Values()...); err != nil {
		return fmt.Errorf("kernel %s launch failed: %w", k.Name, err)
	}
	return nil
}
