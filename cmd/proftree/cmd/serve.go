package cmd

import (
	"fmt"

	"github.com/abramin/proftree/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort    int
	serveDataDir string
	serveDB      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the profile viewer",
	Long: `Start a local HTTP server that renders profile databases as HTML.

Databases are looked up by file name inside the data directory; the db query
parameter picks one and defaults to the configured database.

The server provides:
- Function list sorted by total time, self time or name
- Function detail pages with immediate children
- JSON endpoints for subtrees and the hot path
- Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if serveDataDir != "" {
			cfg.DataDir = serveDataDir
		}
		if serveDB != "" {
			cfg.DefaultDB = serveDB
		}

		srv, err := server.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		fmt.Printf("Serving profiles from %s (default %s)\n", cfg.DataDir, cfg.DefaultDB)
		fmt.Printf("Viewer available at http://localhost:%d\n", srv.Port())

		return srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to run the viewer on")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "directory holding profile databases")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "database shown when no db parameter is given")
}
