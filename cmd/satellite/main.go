// Command satellite runs the Satellite companion service: archive
// integrity scanning, bulk upload, metadata enrichment and perceptual-
// duplicate detection against a LANraragi instance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "satellite",
		Short: "Satellite is a companion service for LANraragi archive hygiene and deduplication",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newSetupCmd())
	return root
}
