package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/slabmem"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			mode := "release"
			if slabmem.ConfigToken == slabmem.ConfigTokenDebug {
				mode = "debug"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slabctl %s (%s)\n", version, mode)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built: %s\n", date)
		},
	}
}
