package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abramin/proftree/internal/store"
)

var cacheCheck bool

var cacheCmd = &cobra.Command{
	Use:   "cache <db>",
	Short: "Rebuild or verify the function children cache",
	Long: `Rebuild the function children cache from call_relationships and functions.

With --check the database is opened read-only and the cache is compared
against the join it is built from; a stale cache makes the command fail.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := args[0]
		if cacheCheck {
			return checkCache(cmd, dbPath)
		}

		// Create would happily start an empty database, so require the file first.
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", dbPath, store.ErrDatabaseNotFound)
		}
		st, err := store.Create(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.RebuildChildrenCache(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt children cache: %s rows\n", humanize.Comma(n))
		return nil
	},
}

func checkCache(cmd *cobra.Command, dbPath string) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	status, err := st.CheckChildrenCache(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Cache rows: %s\n", humanize.Comma(int64(status.CacheRows)))
	fmt.Printf("Join rows:  %s\n", humanize.Comma(int64(status.JoinRows)))
	if !status.Fresh() {
		return fmt.Errorf("children cache is stale: %d missing, %d extra", status.Missing, status.Extra)
	}
	fmt.Println("Children cache is up to date")
	return nil
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.Flags().BoolVar(&cacheCheck, "check", false, "verify the cache instead of rebuilding it")
}
