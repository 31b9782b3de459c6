// Package commands wires the CLI surface of the coordination server.
package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute(version string) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "chorusd",
		Short:         "Coordination server for autonomous agent fleets (tasks, locks, discovery)",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			return cmd.Help()
		},
	}

	root.Flags().BoolP("version", "v", false, "version for chorusd")

	root.AddCommand(newServeCmd(log))

	err := root.Execute()
	if err != nil {
		log.Error().Err(err).Msg("command failed")
	}
	return err
}
