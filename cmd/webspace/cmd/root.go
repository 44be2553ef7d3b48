// Package cmd implements the webspace command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	webspace "github.com/therealsahil19/webspace"
	"github.com/therealsahil19/webspace/pkg/logging"
)

var (
	configFile string
	logLevel   string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "webspace",
	Short: "Multi-source launch data reconciliation pipeline",
	Long: `webspace ingests launch information from several independent sources,
merges it into one canonical record per launch, and records conflicts
where the sources disagree.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "warnings and errors only")
}

// configureLogging applies the log level precedence: --log-level wins, then
// --verbose, then --quiet, then the LOG_LEVEL environment default.
func configureLogging() {
	switch {
	case logLevel != "":
		if level, err := zerolog.ParseLevel(logLevel); err == nil {
			zerolog.SetGlobalLevel(level)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using info\n", logLevel)
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	case verbose && quiet:
		fmt.Fprintln(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet")
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case quiet:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// openWebspace builds the library instance from the CLI flags.
func openWebspace(opts ...webspace.Option) (webspace.Webspace, error) {
	opts = append([]webspace.Option{webspace.WithConfigFile(configFile)}, opts...)
	w, err := webspace.New(opts...)
	if err != nil {
		logging.Err(err).Msg("Startup failed")
		return nil, err
	}
	return w, nil
}
