package cmd

import (
	"github.com/spf13/cobra"
)

const listLongDescription = `List the Go modules that would be instrumented with the number of lines,
branch segments, paths and fields each one probes.

` + pathPatternsHelp

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List instrumentable modules and their probes",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.List(cmd.Context(), listArgs(args))
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
