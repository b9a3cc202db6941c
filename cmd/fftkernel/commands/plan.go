package commands

import (
	"fmt"
	"math"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/notargets/FFTKernel/repo"
	"github.com/notargets/FFTKernel/runner"
	"github.com/spf13/cobra"
)

var (
	planLengths   []int
	planPrecision string
	planBatch     int
	planScale     float64
	planBackward  bool
	planOutPlace  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build an execution plan on the configured device",
	Long: `Plans a complex transform, compiles its kernels on the OCCA device from
the configuration and prints the node list with the kernel each node runs.`,
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.IntSliceVarP(&planLengths, "length", "l", []int{64}, "transform lengths, fastest dimension first")
	f.StringVarP(&planPrecision, "precision", "p", "", "single or double (default from config)")
	f.IntVar(&planBatch, "batch", 1, "number of transforms")
	f.Float64Var(&planScale, "scale", 1, "output scale factor")
	f.BoolVar(&planBackward, "backward", false, "backward transform")
	f.BoolVar(&planOutPlace, "out-of-place", false, "write to a separate output buffer")
	rootCmd.AddCommand(planCmd)
}

func planParams() (repo.Params, error) {
	var p repo.Params
	if len(planLengths) < 1 || len(planLengths) > repo.MaxRank {
		return p, fmt.Errorf("between 1 and %d lengths are required", repo.MaxRank)
	}
	precName := planPrecision
	if precName == "" {
		precName = cfg.Compiler.Precision
	}
	precision, err := fft.ParsePrecision(precName)
	if err != nil {
		return p, err
	}
	if math.IsNaN(planScale) || math.IsInf(planScale, 0) {
		return p, fmt.Errorf("scale factor %v is not finite", planScale)
	}
	p.Rank = len(planLengths)
	copy(p.Lengths[:], planLengths)
	p.Precision = precision
	p.Batch = planBatch
	p.ScaleFactor = planScale
	if planBackward {
		p.Direction = fft.Backward
	}
	if planOutPlace {
		p.Placement = fft.NotInPlace
	}
	return p, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	params, err := planParams()
	if err != nil {
		return err
	}

	dev, err := runner.NewOCCADevice(cfg.Device.Props)
	if err != nil {
		return err
	}
	defer dev.Close()
	comp := runner.NewOCCACompiler(dev.Device, cfg.Compiler.Flags)
	defer comp.Close()

	r := runner.NewRunner(catalog.Default(), dev, comp, cfg.Compiler.Arch)
	r.EnableCallbacks = cfg.Compiler.EnableCallbacks
	defer r.Free()

	plans := repo.New(r)
	defer plans.Close()
	handle := repo.NewPlan(params, cfg.Device.ID)
	if err := plans.CreatePlan(handle); err != nil {
		return err
	}
	exec := plans.GetPlan(handle).(*runner.ExecPlan)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "device %s, %d node(s)\n", dev.Mode(), len(exec.Nodes()))
	names := exec.KernelNames()
	for i, n := range exec.Nodes() {
		fmt.Fprintf(out, "  %d: %-10s len=%v in=%v out=%v  %s\n",
			i, n.Scheme, n.Length, n.InStride, n.OutStride, names[i])
	}
	return nil
}
