package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/notargets/FFTKernel/catalog"
	"github.com/notargets/FFTKernel/fft"
	"github.com/spf13/cobra"
)

var (
	catalogScheme    string
	catalogPrecision string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the kernel catalog",
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().StringVar(&catalogScheme, "scheme", "", "only list this scheme (stockham, sbcc, sbrc, 2d_single, ...)")
	catalogCmd.Flags().StringVar(&catalogPrecision, "precision", "", "only list this precision (single, double)")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	var scheme fft.Scheme
	if catalogScheme != "" {
		s, err := fft.ParseScheme(catalogScheme)
		if err != nil {
			return err
		}
		scheme = s
	}
	var precision fft.Precision
	if catalogPrecision != "" {
		p, err := fft.ParsePrecision(catalogPrecision)
		if err != nil {
			return err
		}
		precision = p
	}

	cat := catalog.Default()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tFACTORS\tWGS\tTPT\tTPB\tFLAGS")
	for _, key := range cat.Keys() {
		if scheme != fft.SchemeNone && key.Scheme != scheme {
			continue
		}
		if precision != 0 && key.Precision != precision {
			continue
		}
		e, _ := cat.Lookup(key)
		fmt.Fprintf(w, "%s\t%v\t%d\t%v\t%d\t%s\n", key, e.Factors, e.WorkgroupSize,
			e.ThreadsPerTransform, e.TransformsPerBlock, entryFlags(e))
	}
	return w.Flush()
}

func entryFlags(e catalog.Entry) string {
	var flags string
	add := func(on bool, name string) {
		if !on {
			return
		}
		if flags != "" {
			flags += ","
		}
		flags += name
	}
	add(e.HalfLDS, "halfLDS")
	add(e.DirectToFromReg, "dirReg")
	add(e.AOTRTC, "aot")
	add(e.Precompiled, "precompiled")
	if flags == "" {
		return "-"
	}
	return flags
}
