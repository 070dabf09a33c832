// Command slabctl inspects the slabmem size classes, stress-tests the
// allocator and summarizes leak reports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
