package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/relay/config"
	"github.com/yaoapp/relay/logger"
)

// Version of the relay command.
var Version = "0.1.0"

var envFile string

var logCloser io.Closer

// RootCmd is the relay command.
var RootCmd = &cobra.Command{
	Use:           "relay",
	Short:         "Await the outcome of dispatched messages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		logCloser, err = logger.Setup(cfg)
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the relay version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", ".env", "environment file")
	RootCmd.AddCommand(versionCmd, checkCmd, replayCmd)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// execute runs the root command and closes the log file, also when RunE failed
// (cobra skips post-run hooks then).
func execute() error {
	defer closeLog()
	return RootCmd.Execute()
}

func closeLog() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}
