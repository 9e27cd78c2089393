// Command rheem drives a Rheem optimization job end to end against the
// local in-process reference platform (the "demo" subcommand), or fits
// load-profile coefficients from a prior job's execution log (the
// "rheem-learn" subcommand).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rheem",
	Short: "Rheem cost-based optimizer command line",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
