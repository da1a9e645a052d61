// Command grove runs scripted games.
package main

import (
	"fmt"
	"os"

	"github.com/phanxgames/grove/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "grove:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
