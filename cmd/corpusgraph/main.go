// Command corpusgraph ingests a curated document corpus into an
// external index service and searches it.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/corpusgraph/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
