package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/slabmem"
	"github.com/hupe1980/slabmem/resource"
)

type stressFlags struct {
	workers     int
	ops         int
	maxSize     int
	held        int
	seed        int64
	debug       bool
	leak        int
	memoryLimit int64
	report      string
	sink        string
	compression string
}

// stressResult is what one stress run measured.
type stressResult struct {
	Ops     int64
	Bytes   int64
	Elapsed time.Duration
	Stats   slabmem.Stats
	Leaked  int
}

func newStressCmd(g *globalFlags) *cobra.Command {
	f := &stressFlags{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a concurrent allocate/free workload",
		Long: `The stress command runs workers that allocate random sizes, write to
every block, check that no block is shared and free them again.

In debug mode every block is guarded, and --leak keeps some blocks alive
so that the leak report written on exit can be inspected with leakcheck.

Example:
  slabctl stress --workers 8 --ops 100000
  slabctl stress --debug --leak 3 --report leaks.tsv
  slabctl stress --debug --leak 3 --sink file:./reports --compression zstd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runStress(cmd.Context(), g, f)
			if err != nil {
				return err
			}
			printStress(cmd, g, f, res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&f.workers, "workers", "w", 4, "Concurrent workers")
	cmd.Flags().IntVarP(&f.ops, "ops", "n", 100000, "Allocations per worker")
	cmd.Flags().IntVar(&f.maxSize, "max-size", 16384, "Largest request in bytes")
	cmd.Flags().IntVar(&f.held, "held", 64, "Blocks each worker holds before freeing")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Use the guarded debug backend")
	cmd.Flags().IntVar(&f.leak, "leak", 0, "Blocks per worker to leave allocated (debug)")
	cmd.Flags().Int64Var(&f.memoryLimit, "memory-limit", 0, "Mapping budget in bytes (0 = unlimited)")
	cmd.Flags().StringVar(&f.report, "report", "", "Write the leak report to this file")
	cmd.Flags().StringVar(&f.sink, "sink", "", "Store the leak report: file:DIR, s3://BUCKET/PREFIX or minio://ENDPOINT/BUCKET/PREFIX")
	cmd.Flags().StringVar(&f.compression, "compression", "gzip", "Report compression for --sink (none, gzip, zstd, lz4)")
	return cmd
}

func runStress(ctx context.Context, g *globalFlags, f *stressFlags) (stressResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.workers <= 0 || f.ops <= 0 || f.maxSize <= 0 || f.held <= 0 {
		return stressResult{}, fmt.Errorf("--workers, --ops, --max-size and --held must be positive")
	}

	opts := []slabmem.Option{
		slabmem.WithDebug(f.debug),
		slabmem.WithLogger(g.logger(os.Stderr)),
		slabmem.WithResourceConfig(resource.Config{MemoryLimitBytes: f.memoryLimit}),
	}

	if f.report != "" {
		file, err := os.Create(f.report)
		if err != nil {
			return stressResult{}, err
		}
		defer file.Close()
		opts = append(opts, slabmem.WithLeakReport(file))
	}
	if f.sink != "" {
		sink, err := openSink(ctx, f.sink, f.compression)
		if err != nil {
			return stressResult{}, err
		}
		opts = append(opts, slabmem.WithReportSink(sink), slabmem.WithReportPrefix("slabctl"))
	}

	a, err := slabmem.New(opts...)
	if err != nil {
		return stressResult{}, err
	}

	start := time.Now()
	var (
		ops   = make([]int64, f.workers)
		bytes = make([]int64, f.workers)
	)
	eg, _ := errgroup.WithContext(ctx)
	for w := range f.workers {
		eg.Go(func() error {
			th := a.AttachThread()
			defer th.Detach()
			th.PushAllocationTag(fmt.Sprintf("worker-%d", w))

			rng := rand.New(rand.NewSource(f.seed + int64(w))) //nolint:gosec // workload shape only
			held := make([]uintptr, 0, f.held)
			sizes := make([]int, 0, f.held)

			release := func() error {
				for i, p := range held {
					if b := slabmem.Bytes(p, 1)[0]; b != byte(w) {
						return fmt.Errorf("worker %d: block %#x holds %d, another worker wrote to it", w, p, b)
					}
					if sizes[i] > 1 && slabmem.Bytes(p, sizes[i])[sizes[i]-1] != byte(w) {
						return fmt.Errorf("worker %d: block %#x tail overwritten", w, p)
					}
					th.Free(p, slabmem.KindHeapAlloc, "stress.go", 0, "release")
				}
				held, sizes = held[:0], sizes[:0]
				return nil
			}

			for range f.ops {
				size := 1 + rng.Intn(f.maxSize)
				p := th.Allocate(size, slabmem.KindHeapAlloc, "", 0, "")
				buf := slabmem.Bytes(p, size)
				buf[0], buf[size-1] = byte(w), byte(w)
				held = append(held, p)
				sizes = append(sizes, size)
				ops[w]++
				bytes[w] += int64(size)

				if len(held) == cap(held) {
					if err := release(); err != nil {
						return err
					}
				}
			}
			if err := release(); err != nil {
				return err
			}

			for i := range f.leak {
				th.SetThreadTrackingInformation("stress.go", i+1, "leak")
				th.Allocate(64, slabmem.KindNew, "", 0, "")
			}
			return nil
		})
	}
	runErr := eg.Wait()

	res := stressResult{Elapsed: time.Since(start), Stats: a.Stats()}
	for w := range f.workers {
		res.Ops += ops[w]
		res.Bytes += bytes[w]
	}
	if leaks, err := a.Leaks(); err == nil {
		res.Leaked = len(leaks)
	}

	closeErr := a.Close(ctx)
	if runErr != nil {
		return res, runErr
	}
	return res, closeErr
}

func printStress(cmd *cobra.Command, g *globalFlags, f *stressFlags, res stressResult) {
	p := g.printer()
	out := cmd.OutOrStdout()

	mode := "release"
	if res.Stats.Debug {
		mode = "debug"
	}
	secs := res.Elapsed.Seconds()
	if secs == 0 {
		secs = 1e-9
	}

	p.Fprintf(out, "mode:        %s\n", mode)
	p.Fprintf(out, "workers:     %d\n", f.workers)
	p.Fprintf(out, "allocations: %d (%d bytes)\n", res.Ops, res.Bytes)
	p.Fprintf(out, "elapsed:     %v\n", res.Elapsed.Round(time.Millisecond))
	p.Fprintf(out, "throughput:  %.0f allocs/s\n", float64(res.Ops)/secs)
	p.Fprintf(out, "mapped:      %d bytes\n", res.Stats.Heap.MappedBytes())
	p.Fprintf(out, "peak budget: %d bytes\n", res.Stats.PeakMemory)
	if res.Stats.Debug {
		p.Fprintf(out, "violations:  %d\n", res.Stats.Tracker.Violations)
		p.Fprintf(out, "leaked:      %d\n", res.Leaked)
	}
}
