package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abramin/proftree/internal/render"
	"github.com/abramin/proftree/internal/store"
)

var treeDepth int

var rootsCmd = &cobra.Command{
	Use:   "roots <db>",
	Short: "List functions without a caller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(args[0])
		if err != nil {
			return err
		}
		defer st.Close()

		roots, err := st.Roots(cmd.Context())
		if err != nil {
			return err
		}
		for _, fn := range roots {
			printFunction(fn, 0)
		}
		return nil
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children <db> <name>",
	Short: "Show the first function matching name and its direct callees",
	Long: `Find the first function, in dump order, whose name contains <name>, and
print it followed by the rows nested directly under it in the export.

Useful for locating a known entry point such as a thread or event loop.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(args[0])
		if err != nil {
			return err
		}
		defer st.Close()

		fn, err := st.FindByName(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		children, err := st.Descendants(cmd.Context(), fn, 1)
		if err != nil {
			return err
		}

		printFunction(*fn, 0)
		for _, c := range children {
			printFunction(c, 1)
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <db> <id>",
	Short: "Print the call subtree below a function",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(args[0])
		if err != nil {
			return err
		}
		defer st.Close()

		fn, err := st.GetFunction(cmd.Context(), store.FunctionID(args[1]))
		if err != nil {
			return err
		}
		rows, err := st.Descendants(cmd.Context(), fn, treeDepth)
		if err != nil {
			return err
		}

		printFunction(*fn, 0)
		for _, r := range rows {
			printFunction(r, r.IndentLevel-fn.IndentLevel)
		}
		return nil
	},
}

func printFunction(fn store.Function, level int) {
	fmt.Printf("%-16s %12s %12s %7.2f%%  %s%s\n",
		fn.ID,
		render.FormatTime(fn.TotalTime),
		render.FormatTime(fn.SelfTime),
		fn.Percentage,
		strings.Repeat("  ", level),
		fn.ShortName,
	)
}

func init() {
	rootCmd.AddCommand(rootsCmd, childrenCmd, treeCmd)
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 0, "levels to print below the function (0 for all)")
}
