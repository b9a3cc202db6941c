package commands

import (
	"fmt"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/rtc"
	"github.com/spf13/cobra"
)

var (
	specLengths   []int
	specScheme    string
	specPrecision string
	specScale     float64
	specBackward  bool
	specOutPlace  bool
	specPlanarIn  bool
	specPlanarOut bool
	specCallbacks bool
	specNameOnly  bool
)

var specializeCmd = &cobra.Command{
	Use:   "specialize",
	Short: "Print the kernel generated for a transform node",
	Long: `Runs the kernel specializer on a node with contiguous strides and prints
the generated kernel name followed by its OKL source. Nodes the catalog
covers with a precompiled kernel print the precompiled kernel instead.`,
	RunE: runSpecialize,
}

func init() {
	f := specializeCmd.Flags()
	f.IntSliceVarP(&specLengths, "length", "l", []int{64}, "node lengths, transformed dimension first")
	f.StringVar(&specScheme, "scheme", "stockham", "kernel scheme")
	f.StringVarP(&specPrecision, "precision", "p", "", "single or double (default from config)")
	f.Float64Var(&specScale, "scale", 1, "output scale factor")
	f.BoolVar(&specBackward, "backward", false, "backward transform")
	f.BoolVar(&specOutPlace, "out-of-place", false, "write to a separate output buffer")
	f.BoolVar(&specPlanarIn, "planar-in", false, "planar input")
	f.BoolVar(&specPlanarOut, "planar-out", false, "planar output")
	f.BoolVar(&specCallbacks, "callbacks", false, "enable load/store callbacks (default from config)")
	f.BoolVar(&specNameOnly, "name-only", false, "print only the kernel name")
	rootCmd.AddCommand(specializeCmd)
}

func specializeNode() (*fft.Node, error) {
	scheme, err := fft.ParseScheme(specScheme)
	if err != nil {
		return nil, err
	}
	precName := specPrecision
	if precName == "" {
		precName = cfg.Compiler.Precision
	}
	precision, err := fft.ParsePrecision(precName)
	if err != nil {
		return nil, err
	}
	if len(specLengths) == 0 {
		return nil, fmt.Errorf("at least one length is required")
	}

	strides := make([]int, len(specLengths))
	dist := 1
	for i, l := range specLengths {
		if l < 1 {
			return nil, fmt.Errorf("invalid length %d", l)
		}
		strides[i] = dist
		dist *= l
	}

	n := &fft.Node{
		Scheme:       scheme,
		Length:       append([]int(nil), specLengths...),
		Precision:    precision,
		Direction:    fft.Forward,
		Placement:    fft.InPlace,
		InArrayType:  fft.ComplexInterleaved,
		OutArrayType: fft.ComplexInterleaved,
		InStride:     strides,
		OutStride:    append([]int(nil), strides...),
		IDist:        dist,
		ODist:        dist,
		Batch:        1,
		ScaleFactor:  specScale,
	}
	if specBackward {
		n.Direction = fft.Backward
	}
	if specOutPlace {
		n.Placement = fft.NotInPlace
	}
	if specPlanarIn {
		n.InArrayType = fft.ComplexPlanar
	}
	if specPlanarOut {
		n.OutArrayType = fft.ComplexPlanar
	}
	if scheme == fft.KernelStockhamBlockCC {
		n.LargeTwdBase = 8
		n.LargeTwdSteps = 2
	}
	return n, nil
}

func runSpecialize(cmd *cobra.Command, args []string) error {
	node, err := specializeNode()
	if err != nil {
		return err
	}
	callbacks := specCallbacks || cfg.Compiler.EnableCallbacks

	s := rtc.NewSpecializer(catalog.Default(), cfg.Compiler.Arch)
	gen := s.Generate(node, callbacks)
	if gen.Empty() {
		gen = s.Precompiled(node, callbacks)
	}
	if gen.Empty() {
		return fmt.Errorf("no kernel for %s lengths %v", node.Scheme, node.Length)
	}

	out := cmd.OutOrStdout()
	name := gen.GenerateName()
	fmt.Fprintln(out, name)
	if specNameOnly {
		return nil
	}
	src, err := gen.GenerateSource(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, src)
	return nil
}
