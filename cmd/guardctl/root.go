package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/guardheap/heap"
	"github.com/joshuapare/guardheap/heap/source"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guardctl",
	Short: "Exercise and inspect the guarded heap allocator",
	Long: `guardctl drives the guardheap allocator. It runs synthetic allocation
workloads against the available memory sources and shows how buffer overruns
are caught when a block is released.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every allocation and release to stderr")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger returns a debug logger on stderr in verbose mode and nil
// otherwise, which leaves the allocator on its discarding default.
func newLogger() *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newSource maps a --source flag value to a memory source.
func newSource(name string) (source.Source, error) {
	switch name {
	case "malloc", "":
		return source.NewMalloc(), nil
	case "pages":
		return source.NewPages(), nil
	case "go":
		return source.NewGo(), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want malloc, pages or go)", name)
	}
}

// newAllocator builds an allocator from CLI settings.
func newAllocator(src string, policy heap.FaultPolicy, history int) (*heap.Allocator, error) {
	s, err := newSource(src)
	if err != nil {
		return nil, err
	}
	opts := heap.DefaultOptions()
	opts.Source = s
	opts.Fault = policy
	opts.History = history
	opts.Logger = newLogger()
	return heap.New(opts)
}

// printJSON outputs data as indented JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
