package runner

import (
	"math/cmplx"
	"os"
	"testing"
	"unsafe"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/repo"
	"github.com/notargets/FFTKernel/rtc"
	"github.com/notargets/FFTKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Device tests compile real kernels and need an OCCA installation
func requireDevice(t *testing.T) *OCCADevice {
	t.Helper()
	if os.Getenv("FFTKERNEL_DEVICE_TESTS") == "" {
		t.Skip("set FFTKERNEL_DEVICE_TESTS to run device tests")
	}
	return &OCCADevice{Device: utils.CreateTestDevice()}
}

func TestDevice_ForwardMatchesReference(t *testing.T) {
	dev := requireDevice(t)
	defer dev.Close()
	comp := NewOCCACompiler(dev.Device, "")
	defer comp.Close()

	r := NewRunner(catalog.Default(), dev, comp, dev.Mode())
	defer r.Free()

	for _, n := range []int{60, 64, 8192} {
		p := repo.Params{Rank: 1, Lengths: [repo.MaxRank]int{n}, Precision: fft.Double, Placement: fft.NotInPlace}
		built, err := r.Build(repo.Descriptor{Params: p})
		require.NoError(t, err, "length %d", n)
		plan := built.(*ExecPlan)

		x := make([]complex128, n)
		for i := range x {
			x[i] = complex(float64(i%7)-3, float64(i%5)*0.5)
		}
		bytes := int64(n) * 16
		in := dev.Device.Malloc(bytes, unsafe.Pointer(&x[0]), nil)
		out := dev.Device.Malloc(bytes, nil, nil)

		require.NoError(t, plan.Execute([2]fft.DevicePtr{in}, [2]fft.DevicePtr{out}, rtc.Callbacks{}))
		got := make([]complex128, n)
		out.CopyTo(unsafe.Pointer(&got[0]), bytes)

		want := fourier.NewCmplxFFT(n).Coefficients(nil, x)
		for i := range want {
			assert.InDelta(t, 0, cmplx.Abs(got[i]-want[i]), 1e-9*float64(n), "length %d bin %d", n, i)
		}

		in.Free()
		out.Free()
		plan.Free()
	}
}

func TestDevice_CompilerBuildsSpecializedKernel(t *testing.T) {
	dev := requireDevice(t)
	defer dev.Close()
	comp := NewOCCACompiler(dev.Device, "")
	defer comp.Close()

	node := &fft.Node{
		Scheme: fft.KernelStockham, Length: []int{60}, Precision: fft.Single,
		Direction: fft.Forward, Placement: fft.InPlace,
		InArrayType: fft.ComplexInterleaved, OutArrayType: fft.ComplexInterleaved,
		InStride: []int{1}, OutStride: []int{1}, IDist: 60, ODist: 60, Batch: 1,
	}
	gen := rtc.NewSpecializer(catalog.Default(), dev.Mode()).Generate(node, false)
	require.False(t, gen.Empty())
	name := gen.GenerateName()
	src, err := gen.GenerateSource(name)
	require.NoError(t, err)

	k, err := comp.Build(src, name)
	require.NoError(t, err)
	defer k.Free()
	_, ok := k.(*occaKernel)
	assert.True(t, ok)
	assert.NotNil(t, comp.nullBuffer())
}
