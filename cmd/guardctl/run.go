package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/joshuapare/guardheap/heap"
	"github.com/joshuapare/guardheap/heap/metrics"
)

var (
	runCount   int
	runMaxSize int
	runSeed    int64
	runSource  string
	runPolicy  string
	runHistory int
	runJSON    bool
	runProm    bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVarP(&runCount, "count", "n", 1000, "Number of blocks to allocate")
	cmd.Flags().IntVar(&runMaxSize, "max-size", 4096, "Largest block size in bytes")
	cmd.Flags().Int64Var(&runSeed, "seed", 1, "Random seed for block sizes")
	cmd.Flags().StringVar(&runSource, "source", "malloc", "Memory source: malloc, pages or go")
	cmd.Flags().StringVar(&runPolicy, "policy", "exit", "Fault policy: exit, panic or return")
	cmd.Flags().IntVar(&runHistory, "history", 0, "Remember this many released blocks to catch repeated frees")
	cmd.Flags().BoolVar(&runJSON, "json", false, "Print stats as JSON")
	cmd.Flags().BoolVar(&runProm, "prom", false, "Print stats in the Prometheus text format")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic allocation workload and print stats",
		Long: `The run command allocates --count blocks of random size and fills them
with a per-block pattern. Every other block is then reallocated to a new random
size. Finally each block is checked, verified against its pattern and freed,
and the allocator statistics are printed.

Example:
  guardctl run
  guardctl run --count 10000 --max-size 65536 --source pages
  guardctl run --seed 7 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := heap.ParseFaultPolicy(runPolicy)
			if err != nil {
				return err
			}
			cfg := workload{
				Count:   runCount,
				MaxSize: runMaxSize,
				Seed:    runSeed,
				Source:  runSource,
				Policy:  policy,
				History: runHistory,
			}
			a, err := cfg.run()
			if err != nil {
				return err
			}
			defer a.Close()
			return printStats(cmd.OutOrStdout(), a)
		},
	}
}

type workload struct {
	Count   int
	MaxSize int
	Seed    int64
	Source  string
	Policy  heap.FaultPolicy
	History int
}

// run executes the workload and returns the allocator so callers can read
// its stats. The caller closes it.
func (w workload) run() (*heap.Allocator, error) {
	if w.Count <= 0 {
		return nil, fmt.Errorf("--count must be positive, got %d", w.Count)
	}
	if w.MaxSize <= 0 {
		return nil, fmt.Errorf("--max-size must be positive, got %d", w.MaxSize)
	}

	a, err := newAllocator(w.Source, w.Policy, w.History)
	if err != nil {
		return nil, err
	}
	if err := w.exercise(a); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (w workload) exercise(a *heap.Allocator) error {
	rng := rand.New(rand.NewSource(w.Seed))
	blocks := make([][]byte, 0, w.Count)

	for i := 0; i < w.Count; i++ {
		b, err := a.Malloc(1 + rng.Intn(w.MaxSize))
		if err != nil {
			return fmt.Errorf("allocate block %d: %w", i, err)
		}
		fill(b, i)
		blocks = append(blocks, b)
	}

	for i := 0; i < len(blocks); i += 2 {
		old := len(blocks[i])
		b, err := a.Realloc(blocks[i], 1+rng.Intn(w.MaxSize))
		if err != nil {
			return fmt.Errorf("reallocate block %d: %w", i, err)
		}
		if err := verify(b[:min(old, len(b))], i); err != nil {
			return err
		}
		fill(b, i)
		blocks[i] = b
	}

	for i, b := range blocks {
		if err := a.Check(b); err != nil {
			return fmt.Errorf("check block %d: %w", i, err)
		}
		if err := verify(b, i); err != nil {
			return err
		}
		if err := a.Free(b); err != nil {
			return fmt.Errorf("free block %d: %w", i, err)
		}
	}
	return nil
}

func pattern(i int) byte { return byte(i*31 + 7) }

func fill(b []byte, i int) {
	for j := range b {
		b[j] = pattern(i)
	}
}

func verify(b []byte, i int) error {
	want := bytes.Repeat([]byte{pattern(i)}, len(b))
	if !bytes.Equal(b, want) {
		return fmt.Errorf("block %d: content mismatch", i)
	}
	return nil
}

func printStats(w io.Writer, a *heap.Allocator) error {
	switch {
	case runJSON:
		return printJSON(w, a.Stats())
	case runProm:
		return metrics.WriteText(w, a, "guardheap")
	default:
		return a.Report(w)
	}
}
