// Command lobbynet hosts or joins a four-player lobby session over UDP.
//
// `lobbynet serve` binds the server port and admits players; `lobbynet join
// <host>` knocks on a server and mirrors its roster until interrupted.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lobbynet/internal/proto"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func fatal(msg string, err error, attrs ...any) {
	args := make([]any, 0, 2+len(attrs))
	args = append(args, "err", err)
	args = append(args, attrs...)
	slog.Error(msg, args...)
	os.Exit(1)
}

func setupLogging(verbose bool) string {
	runID := proto.MakeRunID()
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})).With("run_id", runID))
	return runID
}

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "lobbynet",
		Short:         "Host or join a UDP game lobby",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		serveCmd(&verbose),
		joinCmd(&verbose),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lobbynet %s (%s)\n", version, commit)
		},
	}
}
