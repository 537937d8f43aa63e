package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/themeflow/server/internal/handlers"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := handlers.CurrentVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "Themeflow %s\ncommit: %s\nbuilt: %s\n", v.Version, v.GitCommit, v.BuildTime)
			return nil
		},
	}
}
