// Command ragsync keeps a remote vector index synchronised with a
// managed document library and an external URL list.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/ragsync/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
