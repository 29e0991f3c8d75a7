// Command reactest validates reactive app declarations and runs scenarios
// against them on a virtual clock.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/reactest/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
