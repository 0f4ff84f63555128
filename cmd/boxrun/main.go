package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"boxrun/internal/cli"
	"boxrun/internal/cli/commands"
	"boxrun/internal/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "boxrun",
		Short:         "Structured test case runner",
		Long:          `Run test cases organised as project, features, cases and steps. Each case's return code is judged against a success flag, and live status, results and history are kept for later inspection.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfg := config.New()

	// Populated by command flags
	var flags cli.Flags

	cmds := commands.NewCommands(cfg, &flags, os.Stdout, os.Stderr)
	cmds.Register(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, commands.ErrCasesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
