// Package runner realizes execution plans on a device: it splits a plan
// into kernel nodes, uploads their twiddle and layout tables, and compiles
// the kernels through the shared kernel cache.
package runner

import (
	"unsafe"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/logging"
	"github.com/notargets/FFTKernel/repo"
	"github.com/notargets/FFTKernel/rtc"
	"github.com/notargets/FFTKernel/runner/builder"
	"github.com/notargets/FFTKernel/twiddle"
	"github.com/pkg/errors"
)

// Runner builds execution plans for one device. It implements repo.Builder.
type Runner struct {
	Catalog         *catalog.Catalog
	Specializer     *rtc.Specializer
	Kernels         *rtc.KernelCache
	Device          Device
	EnableCallbacks bool
}

// NewRunner creates a runner compiling with compiler for arch
func NewRunner(cat *catalog.Catalog, device Device, compiler rtc.Compiler, arch string) *Runner {
	return &Runner{
		Catalog:     cat,
		Specializer: rtc.NewSpecializer(cat, arch),
		Kernels:     rtc.NewKernelCache(compiler),
		Device:      device,
	}
}

// Build plans desc, uploads its tables and compiles its kernels
func (r *Runner) Build(desc repo.Descriptor) (repo.ExecPlan, error) {
	log := logging.For("runner")
	if desc.Params.Rank < 1 || desc.Params.Rank > repo.MaxRank {
		return nil, errors.Errorf("unsupported rank %d", desc.Params.Rank)
	}
	params := desc.Params.Normalized()

	steps, err := planner{cat: r.Catalog, params: params}.steps()
	if err != nil {
		return nil, errors.Wrap(err, "failed to plan transform")
	}

	plan := &ExecPlan{device: r.Device, params: params, steps: steps}
	for i, s := range steps {
		if err := r.upload(plan, s.node); err != nil {
			plan.Free()
			return nil, errors.Wrapf(err, "node %d (%s)", i, s.node.Scheme)
		}
		kernel, err := r.kernelFor(s.node)
		if err != nil {
			plan.Free()
			return nil, errors.Wrapf(err, "node %d (%s)", i, s.node.Scheme)
		}
		plan.kernels = append(plan.kernels, kernel)
		if s.in == tempBuf || s.out == tempBuf {
			plan.tempElems = max(plan.tempElems, s.node.TransformCount()*s.node.Length[0])
		}
	}

	if plan.tempElems > 0 {
		bytes := int64(plan.tempElems) * builder.ComplexSize(params.Precision)
		plan.temp = r.Device.Malloc(bytes, nil)
		plan.owned = append(plan.owned, plan.temp)
	}

	log.WithField("nodes", len(steps)).Debugf("built plan for lengths %v", params.LengthSlice())
	return plan, nil
}

// kernelFor compiles the specialized kernel for node, or the precompiled
// one when the catalog has no reason to specialize
func (r *Runner) kernelFor(node *fft.Node) (*rtc.StockhamKernel, error) {
	gen := r.Specializer.Generate(node, r.EnableCallbacks)
	if gen.Empty() {
		gen = r.Specializer.Precompiled(node, r.EnableCallbacks)
	}
	if gen.Empty() {
		return nil, errors.Errorf("no kernel for length %v", node.Length)
	}
	return r.Kernels.Compile(gen)
}

// upload copies the node's twiddles and layout tables to the device
func (r *Runner) upload(plan *ExecPlan, node *fft.Node) error {
	factors, err := r.factors(node)
	if err != nil {
		return err
	}

	var table []complex128
	if node.Scheme == fft.Kernel2DSingle {
		first, second, ok := rtc.SplitFactors(node.Length[0], factors)
		if !ok {
			return errors.Errorf("factors %v do not split over %v", factors, node.Length)
		}
		table = twiddle.Table2D(node.Length[0], first, node.Length[1], second)
	} else {
		table = twiddle.Table(node.Length[0], factors)
	}
	if table == nil {
		return errors.Errorf("invalid factors %v for length %d", factors, node.Length[0])
	}
	node.Twiddles = plan.uploadTwiddles(table)

	if node.Scheme == fft.KernelStockhamBlockCC {
		n := node.Length[0] * node.Length[1]
		large := twiddle.Large(n, node.LargeTwdBase, node.LargeTwdSteps)
		if large == nil {
			return errors.Errorf("invalid large twiddle decomposition of %d", n)
		}
		node.TwiddlesLarge = plan.uploadTwiddles(large)
	}

	node.DevKernArg = fft.KernArgs{
		Lengths:   plan.uploadInts(node.Length),
		StrideIn:  plan.uploadInts(append(append([]int(nil), node.InStride...), node.IDist)),
		StrideOut: plan.uploadInts(append(append([]int(nil), node.OutStride...), node.ODist)),
	}
	return nil
}

// factors are the radices of the kernel the node runs, resolved through the
// specializer so the twiddle table always matches the generated kernel
func (r *Runner) factors(node *fft.Node) ([]int, error) {
	entry, _, ok := r.Specializer.Entry(node)
	if !ok {
		return nil, errors.Errorf("no catalog entry for %s lengths %v", node.Scheme, node.Length)
	}
	return entry.Factors, nil
}

// Free releases every compiled kernel. Plans built by r must be freed first.
func (r *Runner) Free() {
	r.Kernels.Free()
}

// uploadTwiddles copies a twiddle table at the plan precision
func (p *ExecPlan) uploadTwiddles(table []complex128) fft.DevicePtr {
	var ptr fft.DevicePtr
	if p.params.Precision == fft.Single {
		data := twiddle.Interleaved32(table)
		ptr = p.device.Malloc(int64(len(data))*4, unsafe.Pointer(&data[0]))
	} else {
		data := twiddle.Interleaved64(table)
		ptr = p.device.Malloc(int64(len(data))*8, unsafe.Pointer(&data[0]))
	}
	p.owned = append(p.owned, ptr)
	return ptr
}

func (p *ExecPlan) uploadInts(values []int) fft.DevicePtr {
	data := make([]int64, len(values))
	for i, v := range values {
		data[i] = int64(v)
	}
	ptr := p.device.Malloc(int64(len(data))*8, unsafe.Pointer(&data[0]))
	p.owned = append(p.owned, ptr)
	return ptr
}
