// Package cmd holds the incubatord command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/itohio/goincubator/pkg/config"
)

type rootOptions struct {
	configFile string
}

// NewRootCmd builds the incubatord command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "incubatord",
		Short: "Egg incubator controller",
		Long: `Keeps an egg incubator at its target temperature with a windowed PID
loop, turns the eggs on a schedule and serves status over HTTP.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "config.yaml", "Configuration file path")

	root.AddCommand(
		newRunCmd(opts),
		newPortsCmd(),
		newGetCmd(opts),
		newSetCmd(opts),
		newDumpCmd(opts),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configFile)
}
