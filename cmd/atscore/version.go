package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"resume-ats/internal/rules"
)

var version = "unknown"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number and the embedded rules version",
		Run: func(cmd *cobra.Command, _ []string) {
			rulesVersion := "invalid"
			if r, err := rules.Default(); err == nil {
				rulesVersion = r.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (rules %s)\n", app, version, rulesVersion)
		},
	}
}
