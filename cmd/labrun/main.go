// Command labrun runs liquid-handling protocols.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/labengine/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
