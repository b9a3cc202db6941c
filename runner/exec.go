package runner

import (
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/logging"
	"github.com/notargets/FFTKernel/repo"
	"github.com/notargets/FFTKernel/rtc"
	"github.com/pkg/errors"
)

// ExecPlan is a device-ready plan: its nodes, their kernels and the
// device buffers it owns. Kernels belong to the runner's cache.
type ExecPlan struct {
	device    Device
	params    repo.Params
	steps     []step
	kernels   []*rtc.StockhamKernel
	temp      fft.DevicePtr
	tempElems int
	owned     []fft.DevicePtr
	freed     bool
}

// Nodes returns the plan's kernel nodes in launch order
func (p *ExecPlan) Nodes() []*fft.Node {
	nodes := make([]*fft.Node, len(p.steps))
	for i, s := range p.steps {
		nodes[i] = s.node
	}
	return nodes
}

// KernelNames returns the kernel launched for each node
func (p *ExecPlan) KernelNames() []string {
	names := make([]string, len(p.kernels))
	for i, k := range p.kernels {
		names[i] = k.Name
	}
	return names
}

func (p *ExecPlan) buffers(role bufferRole, in, out [2]fft.DevicePtr) [2]fft.DevicePtr {
	switch role {
	case userIn:
		return in
	case tempBuf:
		return [2]fft.DevicePtr{p.temp, nil}
	default:
		return out
	}
}

// Execute launches every node. in and out hold the real and imaginary
// buffers of planar data; interleaved data only uses index 0. In-place
// plans ignore out. The load callback runs on the first node and the
// store callback on the last.
func (p *ExecPlan) Execute(in, out [2]fft.DevicePtr, cb rtc.Callbacks) error {
	if p.freed {
		return errors.New("execute on a freed plan")
	}
	if p.params.Placement == fft.InPlace {
		out = in
	}
	last := len(p.steps) - 1
	for i, s := range p.steps {
		call := &rtc.DeviceCallIn{
			Node:   s.node,
			BufIn:  p.buffers(s.in, in, out),
			BufOut: p.buffers(s.out, in, out),
		}
		if i == 0 {
			call.Callbacks.LoadFn = cb.LoadFn
			call.Callbacks.LoadData = cb.LoadData
			call.Callbacks.LoadLDSBytes = cb.LoadLDSBytes
		}
		if i == last {
			call.Callbacks.StoreFn = cb.StoreFn
			call.Callbacks.StoreData = cb.StoreData
		}
		if err := p.kernels[i].Launch(call); err != nil {
			return errors.Wrapf(err, "node %d", i)
		}
	}
	p.device.Finish()
	return nil
}

// Free releases the plan's device buffers
func (p *ExecPlan) Free() {
	if p.freed {
		return
	}
	for _, ptr := range p.owned {
		if ptr != nil {
			p.device.Free(ptr)
		}
	}
	p.owned = nil
	p.freed = true
	logging.For("runner").Debugf("freed plan for lengths %v", p.params.LengthSlice())
}
