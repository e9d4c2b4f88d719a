package main

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/joshuapare/guardheap/heap"
	"github.com/joshuapare/guardheap/internal/format"
)

var (
	overrunSize   int
	overrunBy     int
	overrunPolicy string
	overrunSource string
)

func init() {
	cmd := newOverrunCmd()
	cmd.Flags().IntVar(&overrunSize, "size", 64, "Block size in bytes")
	cmd.Flags().IntVar(&overrunBy, "by", 4, "Bytes to write past the end of the block")
	cmd.Flags().StringVar(&overrunPolicy, "policy", "exit", "Fault policy: exit, panic or return")
	cmd.Flags().StringVar(&overrunSource, "source", "malloc", "Memory source: malloc, pages or go")
	rootCmd.AddCommand(cmd)
}

func newOverrunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overrun",
		Short: "Write past the end of a block and free it",
		Long: `The overrun command allocates a block, writes --by bytes past its end
and frees it. With the default exit policy the allocator detects the damaged
footer and terminates the process with status 1.

Writes that stay inside the alignment padding are not detected: a 100-byte
block is padded to 112 bytes, so --by must exceed 12 to reach the footer.

Example:
  guardctl overrun --size 64 --by 1
  guardctl overrun --size 100 --by 16 --policy return`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := heap.ParseFaultPolicy(overrunPolicy)
			if err != nil {
				return err
			}
			return runOverrun(cmd.OutOrStdout(), overrunSource, overrunSize, overrunBy, policy)
		},
	}
}

func runOverrun(out io.Writer, src string, size, by int, policy heap.FaultPolicy) error {
	if size <= 0 {
		return fmt.Errorf("--size must be positive, got %d", size)
	}
	// Stay inside the block: padding plus the footer.
	limit := format.FooterOffset(size) - size + format.FooterSize
	if by < 0 || by > limit {
		return fmt.Errorf("--by must be within [0, %d] for a %d-byte block, got %d", limit, size, by)
	}

	a, err := newAllocator(src, policy, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.Malloc(size)
	if err != nil {
		return err
	}
	ext := unsafe.Slice(unsafe.SliceData(b), size+by)
	for i := size; i < len(ext); i++ {
		ext[i] = 0xAA
	}
	fmt.Fprintf(out, "wrote %d byte(s) past a %d-byte block\n", by, size)

	if err := a.Free(b); err != nil {
		return err
	}
	fmt.Fprintln(out, "block released, overrun not detected")
	return nil
}
