// Command vecmatch matches collections of embedded records from the command
// line. Run 'vecmatch --help' for usage.
package main

import (
	"os"

	"github.com/hupe1980/vecmatch/internal/cli"
)

func main() {
	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
