package runner

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/repo"
	"github.com/notargets/FFTKernel/rtc"
	"github.com/notargets/FFTKernel/twiddle"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMem struct {
	data []byte
}

func (m *fakeMem) int64s() []int64 {
	return unsafe.Slice((*int64)(unsafe.Pointer(&m.data[0])), len(m.data)/8)
}

func (m *fakeMem) float32s() []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&m.data[0])), len(m.data)/4)
}

type fakeDevice struct {
	mu       sync.Mutex
	live     map[*fakeMem]bool
	finishes int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{live: make(map[*fakeMem]bool)}
}

func (d *fakeDevice) Malloc(bytes int64, src unsafe.Pointer) fft.DevicePtr {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := &fakeMem{data: make([]byte, bytes)}
	if src != nil {
		copy(m.data, unsafe.Slice((*byte)(src), bytes))
	}
	d.live[m] = true
	return m
}

func (d *fakeDevice) Free(ptr fft.DevicePtr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, ptr.(*fakeMem))
}

func (d *fakeDevice) Finish() { d.finishes++ }

func (d *fakeDevice) liveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

type fakeKernel struct {
	args []interface{}
	err  error
}

func (k *fakeKernel) RunWithArgs(args ...interface{}) error {
	k.args = args
	return k.err
}

func (k *fakeKernel) Free() {}

type fakeCompiler struct {
	mu      sync.Mutex
	kernels map[string]*fakeKernel
	builds  int
}

func (c *fakeCompiler) Build(source, name string) (rtc.CompiledKernel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kernels == nil {
		c.kernels = make(map[string]*fakeKernel)
	}
	c.builds++
	k := &fakeKernel{}
	c.kernels[name] = k
	return k, nil
}

func newTestRunner() (*Runner, *fakeDevice, *fakeCompiler) {
	dev := newFakeDevice()
	comp := &fakeCompiler{}
	return NewRunner(catalog.Default(), dev, comp, "gfx90a"), dev, comp
}

func params1D(n int) repo.Params {
	return repo.Params{Rank: 1, Lengths: [repo.MaxRank]int{n}, Precision: fft.Single}
}

func buildPlan(t *testing.T, r *Runner, p repo.Params) *ExecPlan {
	t.Helper()
	plan, err := r.Build(repo.Descriptor{Params: p})
	require.NoError(t, err)
	return plan.(*ExecPlan)
}

// launched maps argument names to the values the kernel of node i last ran with
func launched(t *testing.T, plan *ExecPlan, comp *fakeCompiler, i int) map[string]interface{} {
	t.Helper()
	k := plan.kernels[i]
	fk := comp.kernels[k.Name]
	require.NotNil(t, fk, k.Name)
	names := k.LaunchArgs(&rtc.DeviceCallIn{Node: plan.Nodes()[i]}).Names()
	require.Len(t, fk.args, len(names))
	out := make(map[string]interface{}, len(names))
	for j, name := range names {
		out[name] = fk.args[j]
	}
	return out
}

func TestPlanNodes(t *testing.T) {
	twoPass := repo.Params{Rank: 2, Lengths: [repo.MaxRank]int{60, 100}, Precision: fft.Double}
	threePass := repo.Params{Rank: 3, Lengths: [repo.MaxRank]int{8, 16, 32}, Precision: fft.Single}
	fused := repo.Params{Rank: 2, Lengths: [repo.MaxRank]int{16, 32}, Precision: fft.Single}

	tests := []struct {
		name    string
		params  repo.Params
		schemes []fft.Scheme
		lengths [][]int
	}{
		{"single kernel", params1D(60), []fft.Scheme{fft.KernelStockham}, [][]int{{60}}},
		{"large 1D", params1D(8192),
			[]fft.Scheme{fft.KernelStockhamBlockCC, fft.KernelStockham}, [][]int{{256, 32}, {32, 256}}},
		{"fused 2D", fused, []fft.Scheme{fft.Kernel2DSingle}, [][]int{{16, 32}}},
		{"row then column", twoPass,
			[]fft.Scheme{fft.KernelStockham, fft.KernelStockham}, [][]int{{60, 100}, {100, 60}}},
		{"three passes", threePass,
			[]fft.Scheme{fft.KernelStockham, fft.KernelStockham, fft.KernelStockham},
			[][]int{{8, 16, 32}, {16, 8, 32}, {32, 8, 16}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := planner{cat: catalog.Default(), params: tt.params.Normalized()}.steps()
			require.NoError(t, err)
			require.Len(t, steps, len(tt.schemes))
			for i, s := range steps {
				assert.Equal(t, tt.schemes[i], s.node.Scheme, "node %d", i)
				assert.Equal(t, tt.lengths[i], s.node.Length, "node %d", i)
			}
		})
	}
}

func TestPlanNodes_Errors(t *testing.T) {
	realIn := params1D(64)
	realIn.InArrayType = fft.Real
	tests := []struct {
		name   string
		params repo.Params
	}{
		{"rank zero", repo.Params{}},
		{"length one", params1D(1)},
		{"no decomposition", params1D(6)},
		{"uncatalogued pass", repo.Params{Rank: 2, Lengths: [repo.MaxRank]int{64, 6}, Precision: fft.Single}},
		{"real input", realIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := planner{cat: catalog.Default(), params: tt.params.Normalized()}.steps()
			assert.Error(t, err)
		})
	}
}

func TestPlanNodes_LargeLayout(t *testing.T) {
	p := params1D(8192)
	p.Placement = fft.NotInPlace
	p.Batch = 2
	steps, err := planner{cat: catalog.Default(), params: p.Normalized()}.steps()
	require.NoError(t, err)
	require.Len(t, steps, 2)

	cc, row := steps[0], steps[1]
	assert.Equal(t, userIn, cc.in)
	assert.Equal(t, tempBuf, cc.out)
	assert.Equal(t, []int{32, 1}, cc.node.InStride)
	assert.Equal(t, []int{32, 1}, cc.node.OutStride)
	assert.Equal(t, LargeTwiddleBase, cc.node.LargeTwdBase)
	assert.Equal(t, 2, cc.node.LargeTwdSteps)
	assert.Equal(t, fft.NotInPlace, cc.node.Placement)

	assert.Equal(t, tempBuf, row.in)
	assert.Equal(t, userOut, row.out)
	assert.Equal(t, []int{1, 32}, row.node.InStride)
	assert.Equal(t, []int{256, 1}, row.node.OutStride)
	assert.Equal(t, 8192, row.node.IDist)
	assert.Equal(t, 2, row.node.Batch)
}

func TestPlanNodes_ScaleOnLastNode(t *testing.T) {
	p := repo.Params{Rank: 2, Lengths: [repo.MaxRank]int{60, 100}, Precision: fft.Single, ScaleFactor: 0.25}
	steps, err := planner{cat: catalog.Default(), params: p.Normalized()}.steps()
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.False(t, steps[0].node.IsScalingEnabled())
	assert.Equal(t, 0.25, steps[1].node.ScaleFactor)

	// later passes run in place on the output
	assert.Equal(t, userOut, steps[1].in)
	assert.Equal(t, fft.InPlace, steps[1].node.Placement)
}

func TestBuild_UploadsTables(t *testing.T) {
	r, dev, _ := newTestRunner()
	p := params1D(60)
	p.Batch = 3
	plan := buildPlan(t, r, p)

	n := plan.Nodes()[0]
	assert.Equal(t, []int64{60}, n.DevKernArg.Lengths.(*fakeMem).int64s())
	assert.Equal(t, []int64{1, 60}, n.DevKernArg.StrideIn.(*fakeMem).int64s())
	assert.Equal(t, []int64{1, 60}, n.DevKernArg.StrideOut.(*fakeMem).int64s())

	tw := n.Twiddles.(*fakeMem).float32s()
	expected := twiddle.Interleaved32(twiddle.Table(60, []int{6, 10}))
	assert.Equal(t, expected, tw)
	assert.Nil(t, n.TwiddlesLarge)
	assert.Nil(t, plan.temp)

	// twiddles, lengths and two stride tables
	assert.Equal(t, 4, dev.liveCount())
	plan.Free()
	assert.Equal(t, 0, dev.liveCount())
	plan.Free()
}

// Block row/column twiddles come from the refined entry the kernel is
// generated from, even when it factors differently from the generic row.
func TestUpload_BlockRCUsesRefinedFactors(t *testing.T) {
	generic := catalog.NewKey(64, fft.Single, fft.KernelStockhamBlockRC)
	aligned := catalog.NewTransposeKey(64, fft.Single, fft.KernelStockhamBlockRC, fft.TransposeTileAligned)
	cat := catalog.New(
		catalog.Entry{Key: generic, Factors: []int{8, 8}, WorkgroupSize: 64,
			ThreadsPerTransform: [2]int{8, 0}, TransformsPerBlock: 8},
		catalog.Entry{Key: aligned, Factors: []int{4, 4, 4}, WorkgroupSize: 128,
			ThreadsPerTransform: [2]int{16, 0}, TransformsPerBlock: 8},
	)
	dev := newFakeDevice()
	r := NewRunner(cat, dev, &fakeCompiler{}, "gfx90a")

	tests := []struct {
		name    string
		lengths []int
		ok      bool
	}{
		{"aligned refinement", []int{64, 32}, true},
		{"missing unaligned refinement", []int{64, 20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fft.Node{
				Scheme:    fft.KernelStockhamBlockRC,
				Length:    tt.lengths,
				Precision: fft.Single,
				InStride:  []int{1, tt.lengths[0]},
				OutStride: []int{tt.lengths[1], 1},
				IDist:     tt.lengths[0] * tt.lengths[1],
				ODist:     tt.lengths[0] * tt.lengths[1],
			}
			plan := &ExecPlan{device: dev, params: repo.Params{Precision: fft.Single}}
			err := r.upload(plan, n)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			expected := twiddle.Interleaved32(twiddle.Table(64, []int{4, 4, 4}))
			assert.Equal(t, expected, n.Twiddles.(*fakeMem).float32s())
			plan.Free()
		})
	}
	assert.Equal(t, 0, dev.liveCount())
}

func TestBuild_DoublePrecisionAndLarge(t *testing.T) {
	r, dev, _ := newTestRunner()
	p := params1D(8192)
	p.Precision = fft.Double
	plan := buildPlan(t, r, p)

	cc := plan.Nodes()[0]
	large := cc.TwiddlesLarge.(*fakeMem)
	// two steps of 256 entries, 16 bytes each
	assert.Len(t, large.data, 2*256*16)
	require.NotNil(t, plan.temp)
	assert.Len(t, plan.temp.(*fakeMem).data, 8192*16)

	plan.Free()
	assert.Equal(t, 0, dev.liveCount())
}

func TestBuild_KernelSelection(t *testing.T) {
	r, _, comp := newTestRunner()

	// 64 has a precompiled kernel, so the dimension stays dynamic
	plan := buildPlan(t, r, params1D(64))
	require.Len(t, plan.kernels, 1)
	assert.False(t, plan.kernels[0].HardcodedDim())
	assert.NotContains(t, plan.KernelNames()[0], "_dim")

	// scaling forces a specialized kernel
	scaled := params1D(64)
	scaled.ScaleFactor = 0.5
	plan = buildPlan(t, r, scaled)
	assert.Contains(t, plan.KernelNames()[0], "_scale")

	// 60 is specialized with a hardcoded dimension
	plan = buildPlan(t, r, params1D(60))
	assert.True(t, plan.kernels[0].HardcodedDim())
	assert.Equal(t, 3, comp.builds)

	// a second plan of the same shape reuses the compiled kernel
	buildPlan(t, r, params1D(60))
	assert.Equal(t, 3, comp.builds)
	hits, _ := r.Kernels.Stats()
	assert.Equal(t, 1, hits)
}

func TestExecute_BufferRoles(t *testing.T) {
	r, dev, comp := newTestRunner()
	p := params1D(8192)
	p.Placement = fft.NotInPlace
	plan := buildPlan(t, r, p)

	in := [2]fft.DevicePtr{"in", nil}
	out := [2]fft.DevicePtr{"out", nil}
	cb := rtc.Callbacks{LoadFn: "load", LoadData: "load_data", LoadLDSBytes: 16, StoreFn: "store", StoreData: "store_data"}
	require.NoError(t, plan.Execute(in, out, cb))
	assert.Equal(t, 1, dev.finishes)

	first := launched(t, plan, comp, 0)
	assert.Equal(t, "in", first["buf_in"])
	assert.Equal(t, plan.temp, first["buf_out"])
	assert.Equal(t, "load", first["load_cb_fn"])
	assert.Equal(t, uint32(16), first["load_cb_lds_bytes"])
	assert.Nil(t, first["store_cb_fn"])
	assert.Equal(t, plan.Nodes()[0].TwiddlesLarge, first["twiddles_large"])

	second := launched(t, plan, comp, 1)
	assert.Equal(t, plan.temp, second["buf_in"])
	assert.Equal(t, "out", second["buf_out"])
	assert.Nil(t, second["load_cb_fn"])
	assert.Equal(t, "store", second["store_cb_fn"])
	assert.Equal(t, "store_data", second["store_cb_data"])
}

func TestExecute_InPlace(t *testing.T) {
	r, _, comp := newTestRunner()
	plan := buildPlan(t, r, repo.Params{Rank: 2, Lengths: [repo.MaxRank]int{60, 100}, Precision: fft.Single})
	require.NoError(t, plan.Execute([2]fft.DevicePtr{"data", nil}, [2]fft.DevicePtr{"ignored", nil}, rtc.Callbacks{}))

	for i := range plan.Nodes() {
		args := launched(t, plan, comp, i)
		assert.Equal(t, "data", args["buf_in"], "node %d", i)
		_, hasOut := args["buf_out"]
		assert.False(t, hasOut, "node %d", i)
	}
}

func TestExecute_Errors(t *testing.T) {
	r, _, comp := newTestRunner()
	plan := buildPlan(t, r, params1D(60))
	comp.kernels[plan.KernelNames()[0]].err = errors.New("device lost")
	err := plan.Execute([2]fft.DevicePtr{"data"}, [2]fft.DevicePtr{}, rtc.Callbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")

	plan.Free()
	assert.Error(t, plan.Execute([2]fft.DevicePtr{"data"}, [2]fft.DevicePtr{}, rtc.Callbacks{}))
}

func TestBuild_Errors(t *testing.T) {
	r, dev, _ := newTestRunner()
	_, err := r.Build(repo.Descriptor{Params: params1D(6)})
	assert.Error(t, err)
	_, err = r.Build(repo.Descriptor{Params: repo.Params{Rank: repo.MaxRank + 1}})
	assert.Error(t, err)

	failing := NewRunner(catalog.Default(), dev, rtc.CompilerFunc(func(string, string) (rtc.CompiledKernel, error) {
		return nil, errors.New("no compiler")
	}), "gfx90a")
	_, err = failing.Build(repo.Descriptor{Params: params1D(60)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no compiler")
	// a failed build leaves nothing allocated
	assert.Equal(t, 0, dev.liveCount())
}

func TestRepositorySharesExecPlans(t *testing.T) {
	r, dev, comp := newTestRunner()
	plans := repo.New(r)

	p := repo.Params{Rank: 2, Lengths: [repo.MaxRank]int{60, 100}, Precision: fft.Single, ScaleFactor: 1.0 / 6000}
	a := repo.NewPlan(p, 0)
	b := repo.NewPlan(p, 0)
	require.NoError(t, plans.CreatePlan(a))
	require.NoError(t, plans.CreatePlan(b))

	assert.Equal(t, 1, plans.UniquePlanCount())
	assert.Same(t, plans.GetPlan(a), plans.GetPlan(b))
	builds := comp.builds
	live := dev.liveCount()
	assert.Positive(t, live)

	exec := plans.GetPlan(a).(*ExecPlan)
	assert.Equal(t, 1.0/6000, exec.Nodes()[1].ScaleFactor)

	plans.DeletePlan(a)
	assert.Equal(t, live, dev.liveCount())
	plans.DeletePlan(b)
	assert.Equal(t, 0, dev.liveCount())
	assert.Equal(t, builds, comp.builds)

	r.Free()
	assert.Equal(t, 0, r.Kernels.Len())
}
