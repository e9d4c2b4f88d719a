package heap

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joshuapare/guardheap/heap/source"
)

// FaultPolicy selects what happens when a guard check fails.
type FaultPolicy uint8

const (
	// FaultExit logs the fault and exits the process with status 1.
	FaultExit FaultPolicy = iota
	// FaultPanic panics with the *CorruptionError.
	FaultPanic
	// FaultReturn returns the *CorruptionError. The block is left untouched
	// and is not counted as freed.
	FaultReturn
)

func (p FaultPolicy) String() string {
	switch p {
	case FaultExit:
		return "exit"
	case FaultPanic:
		return "panic"
	case FaultReturn:
		return "return"
	default:
		return fmt.Sprintf("FaultPolicy(%d)", uint8(p))
	}
}

// ParseFaultPolicy parses "exit", "panic" or "return".
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exit", "":
		return FaultExit, nil
	case "panic":
		return FaultPanic, nil
	case "return":
		return FaultReturn, nil
	default:
		return 0, fmt.Errorf("heap: unknown fault policy %q", s)
	}
}

// Environment variables read by OptionsFromEnv.
const (
	EnvFault   = "GUARDHEAP_FAULT"   // exit | panic | return
	EnvLocking = "GUARDHEAP_LOCKING" // 1 | true
	EnvLog     = "GUARDHEAP_LOG"     // debug | info
	EnvHistory = "GUARDHEAP_HISTORY" // number of released blocks to remember
)

// Options configures an Allocator.
type Options struct {
	// Source provides the blocks. Nil means a fresh source.NewMalloc().
	Source source.Source

	// Guard stamps and verifies canaries. Nil means DefaultGuard.
	Guard Guard

	// Fault selects the response to corrupted blocks. Default: FaultExit.
	Fault FaultPolicy

	// Logger receives debug records for each allocation and release, and
	// error records for faults. Nil discards everything except the fatal
	// record written before a FaultExit.
	Logger *slog.Logger

	// Locking serializes every operation with a mutex.
	Locking bool

	// History is the number of recently released blocks to remember. A
	// repeated release of a remembered block is reported without reading
	// the freed memory. 0 disables the history and leaves detection to the
	// poisoned header canary, which only works while the memory stays
	// readable.
	History int
}

// DefaultOptions returns the default allocator configuration.
func DefaultOptions() *Options {
	return &Options{
		Guard: DefaultGuard,
		Fault: FaultExit,
	}
}

// OptionsFromEnv returns DefaultOptions adjusted by the GUARDHEAP_*
// environment variables.
func OptionsFromEnv() (*Options, error) {
	opts := DefaultOptions()

	if v := os.Getenv(EnvFault); v != "" {
		p, err := ParseFaultPolicy(v)
		if err != nil {
			return nil, err
		}
		opts.Fault = p
	}

	switch strings.ToLower(os.Getenv(EnvLocking)) {
	case "", "0", "false":
	case "1", "true":
		opts.Locking = true
	default:
		return nil, fmt.Errorf("heap: invalid %s value %q", EnvLocking, os.Getenv(EnvLocking))
	}

	if v := os.Getenv(EnvHistory); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("heap: invalid %s value %q", EnvHistory, v)
		}
		opts.History = n
	}

	if v := os.Getenv(EnvLog); v != "" {
		level, err := parseLevel(v)
		if err != nil {
			return nil, err
		}
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return opts, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	default:
		return 0, fmt.Errorf("heap: invalid %s value %q", EnvLog, s)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
