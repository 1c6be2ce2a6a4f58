package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abramin/proftree/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <csv> [db]",
	Short: "Import a profiler CSV export into a database",
	Long: `Parse a top-down profiler CSV export and write it to SQLite.

The ingest command:
- Skips the preamble up to the "Function Stack" header row
- Derives each call's parent from the indentation of the stack column
- Computes percentages against the first row's total time
- Rebuilds the function children cache used by the viewer

The database defaults to the CSV path with a .db extension. Existing
data in the database is replaced.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath := args[0]
		dbPath := ""
		if len(args) > 1 {
			dbPath = args[1]
		}

		fmt.Printf("Importing profile: %s\n", csvPath)

		importer := ingest.NewImporter(GetConfig(), csvPath, dbPath)
		result, err := importer.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Println()
		fmt.Printf("Import complete!\n")
		fmt.Printf("  Functions:     %s\n", humanize.Comma(int64(result.FunctionCount)))
		fmt.Printf("  Relationships: %s\n", humanize.Comma(int64(result.RelationshipCount)))
		fmt.Printf("  Cache rows:    %s\n", humanize.Comma(result.CacheRowCount))
		fmt.Printf("  CPU time:      %gs\n", result.CPUTime)
		fmt.Printf("  Duration:      %s\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("  Database:      %s\n", result.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
