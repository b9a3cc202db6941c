package commands

import (
	"github.com/notargets/FFTKernel/config"
	"github.com/notargets/FFTKernel/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fftkernel",
	Short: "Inspect and build runtime-specialized FFT kernels",
	Long: `fftkernel lists the Stockham kernel catalog, prints the name and OKL
source the specializer generates for a transform node, and builds execution
plans on an OCCA device.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fftkernel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := logging.Init(c.Logging.Level, c.Logging.File, c.Logging.Console); err != nil {
		return err
	}
	cfg = c
	return nil
}
