// Command isobathctl contours echosounder CSV files locally and drives a
// running isobath server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/banshee-data/isobath/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "isobathctl",
		Short:         "Bathymetric contour tool",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd(), newRegenerateCmd(), newStatusCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// engineFlags are the per-run engine overrides shared by local and remote
// commands. Zero values keep the configured defaults.
type engineFlags struct {
	interval float64
	grid     int
}

func (e *engineFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&e.interval, "interval", 0, "depth interval between contour levels")
	fs.IntVar(&e.grid, "grid", 0, "interpolation grid resolution")
}
