package heap

import (
	"io"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a snapshot of an Allocator's counters. Byte counts are requested
// sizes. CurrentUsage always equals TotalAllocated - TotalFreed.
type Stats struct {
	TotalAllocated uint64 `json:"total_allocated"`
	TotalFreed     uint64 `json:"total_freed"`
	CurrentUsage   uint64 `json:"current_usage"`
	PeakUsage      uint64 `json:"peak_usage"`

	Allocations uint64 `json:"allocations"`
	Frees       uint64 `json:"frees"`
	Faults      uint64 `json:"faults"`
}

func (s *Stats) onAlloc(size int) {
	s.TotalAllocated += uint64(size)
	s.CurrentUsage += uint64(size)
	s.PeakUsage = max(s.PeakUsage, s.CurrentUsage)
	s.Allocations++
}

func (s *Stats) onFree(size int) {
	s.TotalFreed += uint64(size)
	s.CurrentUsage -= uint64(size)
	s.Frees++
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("total_allocated", s.TotalAllocated),
		slog.Uint64("total_freed", s.TotalFreed),
		slog.Uint64("current_usage", s.CurrentUsage),
		slog.Uint64("peak_usage", s.PeakUsage),
		slog.Uint64("allocations", s.Allocations),
		slog.Uint64("frees", s.Frees),
		slog.Uint64("faults", s.Faults),
	)
}

// WriteTo writes the byte counters as a human-readable report, one per line:
//
//	Total Allocated: 1,024 bytes
//	Total Freed: 512 bytes
//	Current Usage: 512 bytes
//	Peak Usage: 1,024 bytes
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	p := message.NewPrinter(language.English)
	lines := []struct {
		label string
		value uint64
	}{
		{"Total Allocated", s.TotalAllocated},
		{"Total Freed", s.TotalFreed},
		{"Current Usage", s.CurrentUsage},
		{"Peak Usage", s.PeakUsage},
	}

	var total int64
	for _, l := range lines {
		n, err := p.Fprintf(w, "%s: %d bytes\n", l.label, l.value)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Stats returns a snapshot of the allocator's counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stats
}

// LogStats writes the current counters to the logger at info level.
func (a *Allocator) LogStats() {
	a.log.Info("heap: stats", "stats", a.Stats())
}

// Report writes the stats report to w.
func (a *Allocator) Report(w io.Writer) error {
	_, err := a.Stats().WriteTo(w)
	return err
}
