package commands

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with fresh flag values
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	specLengths, specScheme, specPrecision, specScale = []int{64}, "stockham", "", 1
	specBackward, specOutPlace, specPlanarIn, specPlanarOut = false, false, false, false
	specCallbacks, specNameOnly = false, false
	catalogScheme, catalogPrecision = "", ""
	cfgFile, verbose = "", false

	// point at an empty config file so the user's config is never read
	empty := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", empty}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fftkernel v"+version)
}

func TestCatalog(t *testing.T) {
	out, err := run(t, "catalog", "--scheme", "2d_single", "--precision", "single")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// header plus five fused 2D entries
	require.Len(t, lines, 6)
	assert.Contains(t, out, "len=16x16 single 2d_single")
	assert.Contains(t, out, "precompiled")
	assert.NotContains(t, out, "double")

	_, err = run(t, "catalog", "--scheme", "fancy")
	assert.Error(t, err)
}

// specialize runs the specialize command on flag values set by setup.
// Slice flags accumulate across parses, so the values are set directly.
func specialize(t *testing.T, setup func()) (string, error) {
	t.Helper()
	_, err := run(t, "version")
	require.NoError(t, err)
	setup()
	var out bytes.Buffer
	specializeCmd.SetOut(&out)
	err = runSpecialize(specializeCmd, nil)
	return out.String(), err
}

func TestSpecialize(t *testing.T) {
	out, err := specialize(t, func() { specLengths, specNameOnly = []int{60}, true })
	require.NoError(t, err)
	name := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(name, "fft_rtc_fwd_len60_dim1_sp_ip_CI_CI"), name)

	out, err = specialize(t, func() {
		specLengths, specBackward, specOutPlace = []int{60}, true, true
		specCallbacks, specPrecision = true, "double"
	})
	require.NoError(t, err)
	assert.Contains(t, out, "fft_rtc_back_len60_dim1_dp_op_CI_CI")
	assert.Contains(t, out, "_CB\n")
	assert.Contains(t, out, "@kernel void fft_rtc_back_len60")

	// a precompiled length prints the dimension-general kernel
	out, err = specialize(t, func() { specNameOnly = true })
	require.NoError(t, err)
	assert.NotContains(t, out, "_dim")

	out, err = specialize(t, func() { specScale, specNameOnly = 0.5, true })
	require.NoError(t, err)
	assert.Contains(t, out, "_scale")

	out, err = specialize(t, func() {
		specLengths, specScheme, specNameOnly = []int{16, 32}, "2d_single", true
	})
	require.NoError(t, err)
	assert.Contains(t, out, "_len16x32_")
}

func TestSpecializeErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"unknown scheme", func() { specScheme = "bluestein" }},
		{"unknown precision", func() { specPrecision = "half" }},
		{"uncatalogued length", func() { specLengths = []int{6} }},
		{"bad length", func() { specLengths = []int{0} }},
		{"no lengths", func() { specLengths = nil }},
		{"transpose scheme", func() { specLengths, specScheme = []int{64, 64}, "transpose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := specialize(t, tt.setup)
			assert.Error(t, err)
		})
	}
}

func TestSpecializeFlags(t *testing.T) {
	out, err := run(t, "specialize", "--scheme", "sbcc", "-l", "128,64", "--name-only")
	require.NoError(t, err)
	assert.Contains(t, out, "_len128_")
	assert.Contains(t, out, "_sbcc")
	assert.Contains(t, out, "_twdbase8_2step")
}

func TestPlanParams(t *testing.T) {
	_, err := run(t, "version")
	require.NoError(t, err)

	planLengths, planPrecision, planBatch = []int{60, 100}, "double", 4
	p, err := planParams()
	require.NoError(t, err)
	assert.Equal(t, 2, p.Rank)
	assert.Equal(t, [3]int{60, 100, 0}, p.Lengths)
	assert.Equal(t, 4, p.Batch)

	planLengths = []int{2, 2, 2, 2}
	_, err = planParams()
	assert.Error(t, err)
	planLengths, planPrecision, planBatch = []int{64}, "", 1
}

func TestPlanParamsScale(t *testing.T) {
	_, err := run(t, "version")
	require.NoError(t, err)
	defer func() { planScale = 1 }()

	tests := []struct {
		name  string
		scale float64
		ok    bool
	}{
		{"unit", 1, true},
		{"half", 0.5, true},
		{"nan", math.NaN(), false},
		{"infinite", math.Inf(1), false},
		{"negative infinite", math.Inf(-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planScale = tt.scale
			p, err := planParams()
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scale, p.ScaleFactor)
		})
	}
}
