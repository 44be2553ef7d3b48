// Command webspace operates the launch data reconciliation pipeline:
// triggering runs, inspecting their status, and administering conflicts and
// the run lease.
package main

import (
	"os"

	"github.com/therealsahil19/webspace/cmd/webspace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
