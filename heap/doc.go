// Package heap provides a debugging allocator that surrounds every block with
// guard metadata.
//
// # Overview
//
// Each allocation is a fresh request to a Source (see package source) for a
// block laid out as a 16-byte header, the payload rounded up to 16 bytes and
// an 8-byte footer:
//
//	+--------+---------+-----------+---------+--------+
//	| canary | (pad)   | size      | payload | footer |
//	| uint32 | uint32  | uint64    | A(n)    | 8      |
//	+--------+---------+-----------+---------+--------+
//	         ^ header (16)         ^ user pointer
//
// The header canary and footer canary are written by a Guard when the block
// is created and verified whenever it is released or inspected. A
// mismatch means something wrote outside its allocation (or released the
// same block twice) and is reported as a *CorruptionError.
//
// # Usage Example
//
//	a, err := heap.New(nil)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	b, err := a.Malloc(100)
//	if err != nil {
//	    return err
//	}
//	copy(b, payload)
//
//	if err := a.Free(b); err != nil {
//	    return err
//	}
//	a.LogStats()
//
// # Fault Policy
//
// A corrupted block is fatal by default: the allocator logs the fault and
// exits the process with status 1. FaultPanic and FaultReturn trade that for
// a panic or an ordinary error return, which is convenient in tests and
// long-running tools that want to keep going.
//
// # Statistics
//
// Every Allocator tracks total allocated and freed bytes, the current and
// peak usage, and operation counters. Sizes are the requested sizes, never
// the aligned ones, so the numbers match what callers asked for.
//
// # Release History
//
// Released blocks get a poisoned header canary, so freeing one twice is
// caught while its memory is still readable. Options.History additionally
// remembers recently released addresses and reports a repeat without
// touching the freed memory.
//
// # Thread Safety
//
// An Allocator is not safe for concurrent use unless it was created with
// Options.Locking set.
package heap
