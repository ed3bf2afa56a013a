package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skobkin/joylink/internal/app"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of joylink",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", app.Name, app.BuildVersionWithDate())
		},
	}
}
