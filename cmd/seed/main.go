// Command seed compiles, runs and inspects model-driven action programs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/seed/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
