// Package metrics exports allocator statistics as Prometheus metrics.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/joshuapare/guardheap/heap"
)

// StatsSource is anything that can produce an allocator stats snapshot.
// *heap.Allocator implements it.
type StatsSource interface {
	Stats() heap.Stats
}

// Collector is a prometheus.Collector reading a StatsSource on every scrape.
type Collector struct {
	src StatsSource

	currentUsage *prometheus.Desc
	peakUsage    *prometheus.Desc
	allocated    *prometheus.Desc
	freed        *prometheus.Desc
	allocations  *prometheus.Desc
	frees        *prometheus.Desc
	faults       *prometheus.Desc
}

// NewCollector returns a Collector for src with metric names prefixed by
// namespace (may be empty).
func NewCollector(src StatsSource, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "heap", name), help, nil, nil)
	}
	return &Collector{
		src:          src,
		currentUsage: desc("current_usage_bytes", "Bytes currently allocated."),
		peakUsage:    desc("peak_usage_bytes", "Highest value current usage has reached."),
		allocated:    desc("allocated_bytes_total", "Bytes allocated over the allocator lifetime."),
		freed:        desc("freed_bytes_total", "Bytes freed over the allocator lifetime."),
		allocations:  desc("allocations_total", "Successful allocations."),
		frees:        desc("frees_total", "Successful frees."),
		faults:       desc("faults_total", "Guard verification failures."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.currentUsage
	ch <- c.peakUsage
	ch <- c.allocated
	ch <- c.freed
	ch <- c.allocations
	ch <- c.frees
	ch <- c.faults
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	gauge := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge(c.currentUsage, s.CurrentUsage)
	gauge(c.peakUsage, s.PeakUsage)
	counter(c.allocated, s.TotalAllocated)
	counter(c.freed, s.TotalFreed)
	counter(c.allocations, s.Allocations)
	counter(c.frees, s.Frees)
	counter(c.faults, s.Faults)
}

// WriteText writes the current metrics of src in the Prometheus text
// exposition format.
func WriteText(w io.Writer, src StatsSource, namespace string) error {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(src, namespace)); err != nil {
		return fmt.Errorf("metrics: register collector: %w", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
