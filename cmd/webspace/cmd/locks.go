package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect and administer the run lock",
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the run lock is held",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		locked, err := w.IsLocked(cmd.Context())
		if err != nil {
			return err
		}
		if locked {
			fmt.Println("locked")
		} else {
			fmt.Println("unlocked")
		}
		return nil
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Forcibly release the run lock",
	Long: `Release the run lock regardless of who holds it. Use only when a
worker crashed without releasing; forcing the lock out from under a
live worker lets two runs write concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWebspace()
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		if err := w.ForceUnlock(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("lock released")
		return nil
	},
}

func init() {
	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockReleaseCmd)
	rootCmd.AddCommand(lockCmd)
}
