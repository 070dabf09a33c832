package main

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/slabmem/report"
)

// errLeaksFound makes leakcheck exit non-zero with --fail.
var errLeaksFound = errors.New("leaks found")

func newLeakCheckCmd(g *globalFlags) *cobra.Command {
	var (
		compression string
		top         int
		fail        bool
	)

	cmd := &cobra.Command{
		Use:   "leakcheck <report>",
		Short: "Summarize a leak report",
		Long: `The leakcheck command reads a leak report written on Close by a debug
allocator, optionally compressed, and prints the totals and the sites
that leaked the most bytes.

Example:
  slabctl leakcheck leaks.tsv
  slabctl leakcheck slabmem-20260101T000000Z-42.tsv.zst --top 5 --fail`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := detectCompression(args[0], compression)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			leaks, err := report.Decode(f, c)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			printLeaks(cmd, g, leaks, top)
			if fail && len(leaks) > 0 {
				return errLeaksFound
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&compression, "compression", "auto", "Report compression (auto, none, gzip, zstd, lz4)")
	cmd.Flags().IntVar(&top, "top", 10, "Number of sites to list")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with an error if the report lists any leak")
	return cmd
}

// detectCompression maps "auto" to the compression implied by the file name.
func detectCompression(path, name string) (report.Compression, error) {
	if name != "auto" {
		return report.ParseCompression(name)
	}
	ext := filepath.Ext(path)
	for _, c := range []report.Compression{report.CompressionGzip, report.CompressionZstd, report.CompressionLZ4} {
		if ext == c.Extension() {
			return c, nil
		}
	}
	return report.CompressionNone, nil
}

// siteTotal is one row of the per-site table.
type siteTotal struct {
	site  string
	count int
	bytes int64
}

func printLeaks(cmd *cobra.Command, g *globalFlags, leaks []report.Leak, top int) {
	p := g.printer()
	out := cmd.OutOrStdout()

	s := report.Summarize(leaks)
	if s.Count == 0 {
		p.Fprintf(out, "no leaks\n")
		return
	}
	p.Fprintf(out, "%d leaks, %d bytes, %d sites\n", s.Count, s.Bytes, len(s.BySite))

	bySite := make(map[string]*siteTotal, len(s.BySite))
	for _, l := range leaks {
		key := fmt.Sprintf("%s:%d", orDash(l.File), l.Line)
		st, ok := bySite[key]
		if !ok {
			st = &siteTotal{site: key}
			bySite[key] = st
		}
		st.count++
		st.bytes += int64(l.Size)
	}
	rows := make([]*siteTotal, 0, len(bySite))
	for _, st := range bySite {
		rows = append(rows, st)
	}
	slices.SortFunc(rows, func(a, b *siteTotal) int {
		if c := cmp.Compare(b.bytes, a.bytes); c != 0 {
			return c
		}
		return cmp.Compare(a.site, b.site)
	})
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	p.Fprintf(tw, "site\tleaks\tbytes\n")
	for _, st := range rows {
		p.Fprintf(tw, "%s\t%d\t%d\n", st.site, st.count, st.bytes)
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
