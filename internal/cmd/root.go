// Package cmd implements the worker's command-line surface with
// github.com/spf13/cobra, the teacher's own CLI-framework choice carried
// forward from nothing (the teacher ran a single main.go with no
// subcommands) to a proper serve/version split, since this worker is a
// standalone process rather than one more handler in a larger app.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wpgc/quiz-archiver/internal/config"
)

// Execute runs the root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quiz-archiver",
		Short: "Quiz archive worker for a learning-management host",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the worker version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetFullVersion("quiz-archiver"))
			return nil
		},
	}
}
