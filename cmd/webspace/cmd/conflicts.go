package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	conflictsResolvedOnly bool
	conflictsOpenOnly     bool
	resolveNotes          string
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Inspect and administer field conflicts",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded conflicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		var resolved *bool
		switch {
		case conflictsResolvedOnly && conflictsOpenOnly:
			return fmt.Errorf("--resolved and --open are mutually exclusive")
		case conflictsResolvedOnly:
			v := true
			resolved = &v
		case conflictsOpenOnly:
			v := false
			resolved = &v
		}

		conflicts, err := w.ListConflicts(cmd.Context(), resolved)
		if err != nil {
			return err
		}
		if len(conflicts) == 0 {
			fmt.Println("no conflicts")
			return nil
		}
		for _, c := range conflicts {
			state := "open"
			if c.Resolved {
				state = "resolved=" + c.ResolutionValue
			}
			fmt.Printf("#%d %s %s: %q vs %q [%s]\n",
				c.ID, c.Slug, c.FieldName, c.Source1Value, c.Source2Value, state)
		}
		return nil
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <value>",
	Short: "Resolve a conflict with a chosen value",
	Long: `Mark a conflict resolved. The chosen value is written through to the
canonical record and holds against future runs until the conflict is
explicitly reopened.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conflict id %q", args[0])
		}

		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		rec, err := w.ResolveConflict(cmd.Context(), id, args[1], resolveNotes)
		if err != nil {
			return err
		}
		fmt.Printf("resolved conflict #%d; %s now has the chosen value\n", id, rec.Slug)
		return nil
	},
}

var conflictsReopenCmd = &cobra.Command{
	Use:   "reopen <conflict-id>",
	Short: "Reopen a resolved conflict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conflict id %q", args[0])
		}

		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		if err := w.ReopenConflict(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("reopened conflict #%d\n", id)
		return nil
	},
}

var conflictsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize stored conflicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		stats, err := w.ConflictStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("total=%d open=%d resolved=%d\n", stats.Total, stats.Open, stats.Resolved)
		for field, count := range stats.ByField {
			fmt.Printf("  %-15s %d\n", field, count)
		}
		return nil
	},
}

func init() {
	conflictsListCmd.Flags().BoolVar(&conflictsResolvedOnly, "resolved", false, "only resolved conflicts")
	conflictsListCmd.Flags().BoolVar(&conflictsOpenOnly, "open", false, "only open conflicts")
	conflictsResolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "resolution notes")

	conflictsCmd.AddCommand(conflictsListCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)
	conflictsCmd.AddCommand(conflictsReopenCmd)
	conflictsCmd.AddCommand(conflictsStatsCmd)
	rootCmd.AddCommand(conflictsCmd)
}
