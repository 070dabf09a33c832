package main

import (
	"fmt"
	"math/bits"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/slabmem/heap"
	"github.com/hupe1980/slabmem/slab"
)

// headerSize is the per-block class header.
const headerSize = strconv.IntSize / 8

func newClassesCmd(g *globalFlags) *cobra.Command {
	var (
		minClass  int
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Print the size-class table",
		Long: `The classes command prints every size class with the largest request
it serves and the number of elements per chunk.

Example:
  slabctl classes
  slabctl classes --min-class-size 16 --chunk-size 65536`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if minClass < headerSize || bits.OnesCount(uint(minClass)) != 1 { //nolint:gosec // checked positive
				return fmt.Errorf("--min-class-size %d is not a power of two >= %d", minClass, headerSize)
			}
			if largest := minClass << (heap.NumClasses - 1); chunkSize <= largest+int(slab.ChunkHeaderSize) {
				return fmt.Errorf("--chunk-size %d cannot hold a %d byte class", chunkSize, largest)
			}
			h := heap.New(heap.WithMinClassSize(minClass), heap.WithChunkSize(chunkSize))
			defer h.Destroy()

			p := g.printer()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			p.Fprintf(tw, "class\tsize\tmax request\tper chunk\t\n")
			for i := range h.NumClasses() {
				size := h.ClassSize(i)
				perChunk := (chunkSize - int(slab.ChunkHeaderSize)) / size
				p.Fprintf(tw, "%d\t%d\t%d\t%d\t\n", i, size, size-headerSize, perChunk)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			p.Fprintf(cmd.OutOrStdout(), "larger requests are mapped directly (page size rounding)\n")
			return nil
		},
	}

	cmd.Flags().IntVar(&minClass, "min-class-size", 8, "Smallest size class (power of two)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", slab.DefaultChunkSize, "Bytes mapped per chunk")
	return cmd
}
