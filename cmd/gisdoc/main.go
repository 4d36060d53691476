// Command gisdoc runs the document relay and manages stored documents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gisdoc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gisdoc:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
