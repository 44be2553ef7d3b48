package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/pipeline"
)

var (
	runSources []string
	runWait    bool
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger a pipeline run",
	Long: `Trigger a reconciliation run over the configured sources. The run is
subject to the cluster-wide lease: if another run is active, this one is
reported as SKIPPED.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		handle := w.TriggerRun(runSources)
		if !runWait {
			return printStatus(handle)
		}

		// Ctrl+C cancels the run cooperatively instead of abandoning it.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-sig:
				logging.Warn().Str("run_id", handle.ID).Msg("Interrupt received, cancelling run")
				w.CancelRun(handle.ID)
			case <-ticker.C:
			}
			status, err := w.RunStatus(handle.ID)
			if err != nil {
				return err
			}
			if status.State.Terminal() {
				return printStatus(status)
			}
		}
	},
}

func printStatus(status pipeline.RunStatus) error {
	if runJSON {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("run %s: %s", status.ID, status.State)
	if status.Reason != "" {
		fmt.Printf(" (%s)", status.Reason)
	}
	fmt.Println()
	for _, ss := range status.Stats.Sources {
		fmt.Printf("  source %-20s attempted=%d succeeded=%d failed=%d records=%d degraded=%v\n",
			ss.Name, ss.Attempted, ss.Succeeded, ss.Failed, ss.Records, ss.Degraded)
	}
	fmt.Printf("  validated=%d rejected=%d groups=%d upserted=%d conflicts: created=%d updated=%d\n",
		status.Stats.RecordsValidated, status.Stats.RecordsRejected,
		status.Stats.GroupsProcessed, status.Stats.LaunchesUpserted,
		status.Stats.ConflictsCreated, status.Stats.ConflictsUpdated)
	return nil
}

func init() {
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "restrict the run to these sources")
	runCmd.Flags().BoolVar(&runWait, "wait", true, "wait for the run to finish")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print status as JSON")

	rootCmd.AddCommand(runCmd)
}
