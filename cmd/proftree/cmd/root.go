package cmd

import (
	"fmt"

	"github.com/abramin/proftree/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "proftree",
	Short: "proftree - Browse top-down CPU profiles as a call tree",
	Long: `proftree imports a top-down profiler CSV export into SQLite and serves
it as a browsable call tree.

Each function row links to its immediate callees, read from a precomputed
children cache, so even very large profiles open instantly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./proftree.yaml)")
}

func GetConfig() *config.Config {
	return cfg
}
