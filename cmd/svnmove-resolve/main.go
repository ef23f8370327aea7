// Command svnmove-resolve is the CLI front-end over the update-move
// conflict resolver.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/svnmove/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
