package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hupe1980/slabmem"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	verbose bool
	lang    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "slabctl",
		Short: "Inspect and exercise the slabmem allocator",
		Long: `slabctl prints the allocator's size-class table, runs concurrent
allocation stress tests in release or debug mode, and summarizes
leak reports written by debug builds.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log allocator events to stderr")
	cmd.PersistentFlags().StringVar(&g.lang, "lang", "en", "Language tag used to format numbers")

	cmd.AddCommand(
		newClassesCmd(g),
		newStressCmd(g),
		newLeakCheckCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// printer returns a message printer writing numbers in the configured locale.
func (g *globalFlags) printer() *message.Printer {
	tag, err := language.Parse(g.lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func (g *globalFlags) logger(w io.Writer) *slabmem.Logger {
	if !g.verbose {
		return slabmem.NoopLogger()
	}
	return slabmem.NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
