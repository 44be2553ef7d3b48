package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealsahil19/webspace/pkg/launches"
)

var launchesJSON bool

var launchesCmd = &cobra.Command{
	Use:   "launches",
	Short: "Browse reconciled launch records",
}

var launchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reconciled launches",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		records, err := w.ListLaunches(cmd.Context())
		if err != nil {
			return err
		}
		if launchesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		for _, rec := range records {
			fmt.Println(launchLine(rec))
		}
		return nil
	},
}

var launchesGetCmd = &cobra.Command{
	Use:   "get <slug>",
	Short: "Show a single launch by slug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		rec, err := w.GetLaunch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if launchesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		fmt.Println(launchLine(*rec))
		if rec.Details != "" {
			fmt.Println(" ", rec.Details)
		}
		return nil
	},
}

func launchLine(rec launches.LaunchRecord) string {
	date := "TBD"
	if rec.LaunchDate != nil {
		date = rec.LaunchDate.UTC().Format(time.RFC3339)
	}
	status := string(rec.Status)
	if status == "" {
		status = "unclassified"
	}
	return fmt.Sprintf("%-40s %s %s %s", rec.Slug, date, rec.MissionName, status)
}

func init() {
	launchesCmd.PersistentFlags().BoolVar(&launchesJSON, "json", false, "output as JSON")

	launchesCmd.AddCommand(launchesListCmd)
	launchesCmd.AddCommand(launchesGetCmd)
	rootCmd.AddCommand(launchesCmd)
}
